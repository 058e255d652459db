package middleware

import (
	"context"
	"net/http"
	"strings"

	"coteri/internal/domain/membership"
	"coteri/internal/services"
	"coteri/internal/transport/httpdto"
	"coteri/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Authenticator turns a bearer token into a user id.
type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.Authenticate(extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), userID)
		ctx = logger.WithActorID(ctx, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// StaffResolver finds the venue a user verifies for.
type StaffResolver interface {
	ResolveStaff(ctx context.Context, userID uuid.UUID) (membership.StaffAssignment, error)
}

// StaffMiddleware must run after AuthMiddleware.
func StaffMiddleware(resolver StaffResolver) gin.HandlerFunc {
	return staffMiddleware(resolver, true)
}

// OptionalStaffMiddleware lets users without a verifying role through with no
// staff assignment in the context. Lookup failures still abort.
func OptionalStaffMiddleware(resolver StaffResolver) gin.HandlerFunc {
	return staffMiddleware(resolver, false)
}

func staffMiddleware(resolver StaffResolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		staff, err := resolver.ResolveStaff(c.Request.Context(), userID)
		if err != nil {
			status := services.HTTPStatus(err)
			if status == http.StatusForbidden {
				if !required {
					c.Next()
					return
				}
				c.JSON(status, httpdto.NewErrorResponse("staff access required", "FORBIDDEN"))
			} else {
				c.JSON(status, httpdto.NewErrorResponse("could not resolve staff access", "INTERNAL_ERROR"))
			}
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(services.WithStaffContext(c.Request.Context(), staff))
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
