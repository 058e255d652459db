package handler

import (
	"context"
	"net/http"

	"coteri/internal/domain/membership"
	"coteri/internal/domain/verification"
	"coteri/internal/services"
	"coteri/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Verifier interface {
	Verify(ctx context.Context, staff membership.StaffAssignment, raw string) verification.Result
	LastResult(ctx context.Context, staffUserID uuid.UUID) (*verification.Result, error)
}

type VerifyHandler struct {
	service Verifier
}

func NewVerifyHandler(service Verifier) *VerifyHandler {
	return &VerifyHandler{service: service}
}

// Verify checks a scanned payload against the caller's venue. Callers
// without a verifying role always see invalid.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req httpdto.VerifyRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	staff, ok := services.StaffFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toVerifyResponse(verification.Invalid())))
		return
	}

	result := h.service.Verify(c.Request.Context(), staff, req.Payload)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toVerifyResponse(result)))
}

// LastResult returns the pending result once, then forgets it.
func (h *VerifyHandler) LastResult(c *gin.Context) {
	staff, ok := services.StaffFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("staff access required", "FORBIDDEN"))
		return
	}

	result, err := h.service.LastResult(c.Request.Context(), staff.UserID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("result unavailable", "UNAVAILABLE"))
		return
	}

	resp := httpdto.LastResultResponse{}
	if result != nil {
		r := toVerifyResponse(*result)
		resp.Result = &r
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func toVerifyResponse(r verification.Result) httpdto.VerifyResponse {
	return httpdto.VerifyResponse{
		Status:       string(r.Status),
		Tier:         r.Tier,
		MembershipID: r.MembershipID,
	}
}
