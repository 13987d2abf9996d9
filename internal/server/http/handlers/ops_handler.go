package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/payledger/internal/server/http/dto"
)

// OpsHandler serves the operator endpoints for withdrawals and balances.
type OpsHandler struct {
	facade OpsFacade
}

// NewOpsHandler constructs OpsHandler.
func NewOpsHandler(facade OpsFacade) *OpsHandler {
	return &OpsHandler{facade: facade}
}

// Health handles GET /healthz.
func (h *OpsHandler) Health(c *gin.Context) {
	if err := h.facade.Health(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Withdrawal handles GET /ops/withdrawals/:id.
func (h *OpsHandler) Withdrawal(c *gin.Context) {
	w, err := h.facade.Withdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalResponse(w))
}

// AuditTrail handles GET /ops/withdrawals/:id/audit.
func (h *OpsHandler) AuditTrail(c *gin.Context) {
	trail, err := h.facade.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(trail) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, dto.NewAuditTrailResponse(trail))
}

// Resume handles POST /ops/withdrawals/:id/resume.
func (h *OpsHandler) Resume(c *gin.Context) {
	w, err := h.facade.ResumeWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalResponse(w))
}

// Refund handles POST /ops/withdrawals/:id/refund.
func (h *OpsHandler) Refund(c *gin.Context) {
	r, err := h.facade.RefundFailedWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewRefundResponse(r))
}

// Balances handles GET /ops/users/:id/balances with an optional currency query.
func (h *OpsHandler) Balances(c *gin.Context) {
	balances, err := h.facade.Balances(c.Request.Context(), c.Param("id"), c.Query("currency"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewBalancesResponse(balances))
}
