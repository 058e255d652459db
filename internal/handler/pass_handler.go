package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"coteri/internal/services"
	"coteri/internal/transport/httpdto"
	coteri_errors "coteri/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PassIssuer interface {
	Issue(ctx context.Context, userID, membershipID, venueID uuid.UUID) (services.IssuedPass, error)
	GoogleWalletLink(ctx context.Context, userID, membershipID, venueID uuid.UUID) (string, error)
}

type PassHandler struct {
	service PassIssuer
}

func NewPassHandler(service PassIssuer) *PassHandler {
	return &PassHandler{service: service}
}

func (h *PassHandler) Get(c *gin.Context) {
	userID, membershipID, venueID, ok := passParams(c)
	if !ok {
		return
	}

	pass, err := h.service.Issue(c.Request.Context(), userID, membershipID, venueID)
	if err != nil {
		writePassError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PassResponse{
		MembershipID: pass.MembershipID.String(),
		VenueID:      pass.VenueID.String(),
		Tier:         pass.Tier,
		QRPayload:    pass.QRPayload,
		ExpiresAt:    pass.ExpiresAt.UTC().Format(time.RFC3339),
	}))
}

// GoogleWallet redirects to the save link, or returns it with format=json.
func (h *PassHandler) GoogleWallet(c *gin.Context) {
	userID, membershipID, venueID, ok := passParams(c)
	if !ok {
		return
	}

	link, err := h.service.GoogleWalletLink(c.Request.Context(), userID, membershipID, venueID)
	if err != nil {
		writePassError(c, err)
		return
	}

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.WalletLinkResponse{URL: link}))
		return
	}
	c.Redirect(http.StatusFound, link)
}

func passParams(c *gin.Context) (uuid.UUID, uuid.UUID, uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	membershipID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid membership id", "INVALID_REQUEST"))
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	venueID, err := uuid.Parse(c.Query("venue_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("venue_id is required", "INVALID_REQUEST"))
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	return userID, membershipID, venueID, true
}

func writePassError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, coteri_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("membership not found", "NOT_FOUND"))
	case errors.Is(err, coteri_errors.ErrNotConfigured):
		c.JSON(http.StatusNotImplemented, httpdto.NewErrorResponse("Google Wallet is not configured", "NOT_CONFIGURED"))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("could not issue pass", "INTERNAL_ERROR"))
	}
}
