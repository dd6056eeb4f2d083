package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/logger"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SandboxSettleRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

// PaymentWebhook receives processor notifications. Replays and notifications
// for settled orders are acknowledged with 200 so the processor stops retrying.
func PaymentWebhook(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	log := logger.WithContext(c.Request.Context()).With(zap.String("provider", svc.Processor.Name()))

	cb, err := svc.Processor.ParseCallback(c.Request)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		log.Warn("payment callback rejected", zap.Error(err))
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid callback signature.")
		return
	case errors.Is(err, payment.ErrIgnoredEvent):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	case errors.Is(err, payment.ErrMalformedPayload):
		helpers.RespondWithError(c, http.StatusBadRequest, "Malformed callback payload.")
		return
	case err != nil:
		helpers.RespondWithServiceError(c, err, "Failed to read payment callback.")
		return
	}

	result, err := svc.Orders.HandlePaymentCallback(c.Request.Context(), cb)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			log.Warn("payment callback for unknown order", zap.String("order_id", cb.OrderID))
		}
		helpers.RespondWithServiceError(c, err, "Failed to process payment callback.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// PaymentReturn is where the processor sends the customer back after checkout.
// The processor is asked for the outcome in case the webhook has not arrived.
func PaymentReturn(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "order_id is required.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	order, err := svc.Orders.SyncPaymentStatus(c.Request.Context(), orderID)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to refresh payment status.")
		return
	}
	c.JSON(http.StatusOK, order)
}

// SandboxCheckout settles a sandbox payment. It exists only when the sandbox
// processor is configured and requires the same token as sandbox callbacks.
func SandboxCheckout(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	sandbox, isSandbox := svc.Processor.(*payment.SandboxProcessor)
	if !isSandbox {
		helpers.RespondWithError(c, http.StatusNotFound, "Sandbox payments are disabled.")
		return
	}
	if !sandbox.VerifyToken(c.GetHeader(payment.SandboxTokenHeader)) {
		logger.WithContext(c.Request.Context()).Warn("sandbox settle rejected", zap.String("client_ip", c.ClientIP()))
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid sandbox token.")
		return
	}

	var req SandboxSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	outcome := payment.Outcome(req.Status)
	switch outcome {
	case payment.OutcomeApproved, payment.OutcomeRejected, payment.OutcomeCancelled:
	default:
		helpers.RespondWithError(c, http.StatusBadRequest, "status must be approved, rejected or cancelled.")
		return
	}

	result, err := svc.Orders.HandlePaymentCallback(c.Request.Context(), &payment.Callback{
		OrderID:   req.OrderID,
		PaymentID: "SBX-" + req.OrderID,
		Outcome:   outcome,
		RawStatus: req.Status,
	})
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to settle sandbox payment.")
		return
	}
	c.JSON(http.StatusOK, result)
}

// SandboxCheckoutPage is the redirect target of sandbox checkouts.
func SandboxCheckoutPage(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	if _, isSandbox := svc.Processor.(*payment.SandboxProcessor); !isSandbox {
		helpers.RespondWithError(c, http.StatusNotFound, "Sandbox payments are disabled.")
		return
	}
	order, err := svc.Orders.GetOrder(c.Request.Context(), c.Query("order_id"))
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Error retrieving order.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":       order.OrderID,
		"total_amount":   order.TotalAmount,
		"payment_status": order.PaymentStatus,
		"settle":         "POST /v1/payments/sandbox/checkout with {order_id, status} and the " + payment.SandboxTokenHeader + " header",
	})
}
