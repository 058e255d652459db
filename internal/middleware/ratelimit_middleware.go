package middleware

import (
	"context"
	"net/http"
	"strconv"

	"coteri/internal/redis"
	"coteri/internal/services"
	"coteri/internal/transport/httpdto"
	"coteri/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VerifyLimiter interface {
	AllowVerify(ctx context.Context, staffUserID string) (*redis.RateLimitResult, error)
}

// VerifyRateLimitMiddleware limits verification attempts per staff member.
// It must run after AuthMiddleware. When Redis is unreachable requests pass.
func VerifyRateLimitMiddleware(limiter VerifyLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok || limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowVerify(c.Request.Context(), userID.String())
		if err != nil {
			if l != nil {
				l.WarnCtx(c.Request.Context(), "verify rate limit check failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("verification rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
