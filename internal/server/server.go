package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coteri/config"
	"coteri/internal/handler"
	"coteri/internal/middleware"
	"coteri/internal/transport/httpdto"
	"coteri/internal/websocket"
	"coteri/pkg/database"
	"coteri/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	checks     []healthCheck
}

type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Verify  *handler.VerifyHandler
	Webhook *handler.WebhookHandler
	Pass    *handler.PassHandler
	// Feed is nil when Redis pub/sub is not wired.
	Feed *websocket.Handler
}

// Guards are the request gates shared by the authenticated routes.
type Guards struct {
	Auth    middleware.Authenticator
	Staff   middleware.StaffResolver
	Limiter middleware.VerifyLimiter
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// AddHealthCheck adds a dependency probed by /health after Postgres.
func (s *Server) AddHealthCheck(name string, ping func(ctx context.Context) error) {
	s.checks = append(s.checks, healthCheck{name: name, ping: ping})
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, guards Guards) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("database unavailable", "UNHEALTHY"))
			return
		}
		for _, check := range s.checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := check.ping(ctx)
			cancel()
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(check.name+" unavailable", "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Stripe posts here; other methods get 405 from the handler itself.
	s.engine.Any("/webhooks/stripe", handlers.Webhook.Stripe)

	authed := s.engine.Group("/v1", middleware.AuthMiddleware(guards.Auth))

	verify := authed.Group("/verify")
	{
		verify.POST("",
			middleware.OptionalStaffMiddleware(guards.Staff),
			middleware.VerifyRateLimitMiddleware(guards.Limiter, s.logger),
			handlers.Verify.Verify,
		)
		verify.GET("/result", middleware.StaffMiddleware(guards.Staff), handlers.Verify.LastResult)
	}

	memberships := authed.Group("/memberships")
	{
		memberships.GET("/:id/pass", handlers.Pass.Get)
		memberships.GET("/:id/wallet/google", handlers.Pass.GoogleWallet)
	}

	if handlers.Feed != nil {
		// Authenticated by query token inside the handler.
		s.engine.GET("/v1/venues/:venue_id/feed", handlers.Feed.Feed)
	}
}

// Start serves until SIGINT or SIGTERM, then drains for up to five seconds.
func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
