package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"coteri/internal/domain/membership"
	"coteri/internal/redis"
	"coteri/internal/transport/httpdto"
	coteri_errors "coteri/pkg/errors"
	"coteri/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type FeedAuthorizer interface {
	Authenticate(token string) (uuid.UUID, error)
	ResolveFeedWatcher(ctx context.Context, userID, venueID uuid.UUID) (membership.StaffAssignment, error)
}

type Handler struct {
	auth     FeedAuthorizer
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHandler accepts upgrades from allowedOrigin, or any origin when empty.
func NewHandler(auth FeedAuthorizer, hub *Hub, allowedOrigin string, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.NewNop()
	}
	return &Handler{
		auth: auth,
		hub:  hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
		logger: l,
	}
}

// Feed streams verification attempts at a venue to its managers. Browsers
// cannot set headers on upgrades, so the token comes in the query string.
func (h *Handler) Feed(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("venue_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid venue id", "INVALID_REQUEST"))
		return
	}

	userID, err := h.auth.Authenticate(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if _, err := h.auth.ResolveFeedWatcher(c.Request.Context(), userID, venueID); err != nil {
		if errors.Is(err, coteri_errors.ErrForbidden) {
			c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("manager access required", "FORBIDDEN"))
			return
		}
		h.logger.WarnCtx(c.Request.Context(), "feed authorization failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("could not authorize feed", "INTERNAL_ERROR"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String(), venueID.String())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, redis.FeedChannel(venueID))
	go client.WriteLoop(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
	}

	h.hub.Unregister(client)
}
