package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"coteri/internal/services"
	"coteri/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBody    = 65536
	signatureHeader   = "Stripe-Signature"
	replayTokenHeader = "X-Replay-Token"
)

type WebhookProcessor interface {
	Deliver(ctx context.Context, payload []byte, signatureHeader string) (services.DeliveryResult, error)
	Replay(ctx context.Context, body []byte) services.DeliveryResult
}

type WebhookHandler struct {
	service     WebhookProcessor
	replayToken string
}

// NewWebhookHandler enables operator replay only when replayToken is set.
func NewWebhookHandler(service WebhookProcessor, replayToken string) *WebhookHandler {
	return &WebhookHandler{service: service, replayToken: replayToken}
}

// Stripe receives live deliveries and operator replays. Anything that gets
// past signature or replay authentication is acknowledged with 200 so the
// provider does not retry; failures are visible in the event store and logs.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.String(http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if h.isReplay(c) {
		res := h.service.Replay(c.Request.Context(), body)
		c.JSON(http.StatusOK, httpdto.ReplayAck{
			OK:      true,
			Replay:  true,
			EventID: res.EventID,
			Status:  string(res.Status),
			Error:   res.Error,
		})
		return
	}

	if _, err := h.service.Deliver(c.Request.Context(), body, c.GetHeader(signatureHeader)); err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			c.String(http.StatusBadRequest, "invalid signature")
			return
		}
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, httpdto.WebhookAck{OK: true})
}

func (h *WebhookHandler) isReplay(c *gin.Context) bool {
	if h.replayToken == "" {
		return false
	}
	presented := c.GetHeader(replayTokenHeader)
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.replayToken)) == 1
}
