package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/service"
	appErrors "github.com/pesantren-dev/asrama-adp-api/pkg/errors"
	"github.com/pesantren-dev/asrama-adp-api/pkg/response"
)

// PaymentHandler exposes walisantri payment endpoints.
type PaymentHandler struct {
	payments *service.PaymentHistoryService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentHistoryService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// View godoc
// @Summary View payment history
// @Description Return the viewer's payment history phase and records; empty histories are re-polled server side
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) View(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.payments.View(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Reload godoc
// @Summary Reload payment history
// @Description Force a fresh fetch, superseding any in-flight refresh
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/reload [post]
func (h *PaymentHandler) Reload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.payments.Reload(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Close godoc
// @Summary Close the payment view
// @Description Stop server-side refreshes for the viewer's session
// @Tags Payments
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/session [delete]
func (h *PaymentHandler) Close(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	h.payments.Close(claims.UserID)
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit a payment
// @Description Create a Midtrans Snap transaction for the viewer's santri
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.SubmitPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	res, err := h.payments.SubmitPayment(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
