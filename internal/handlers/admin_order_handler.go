package handlers

import (
	"net/http"
	"strconv"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/repository"
	"github.com/gin-gonic/gin"
)

func ListOrders(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}

	filter := repository.OrderFilter{
		Status:    models.PaymentStatus(c.Query("status")),
		VisitDate: c.Query("visit_date"),
	}
	if raw := c.Query("needs_review"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "needs_review must be true or false.")
			return
		}
		filter.NeedsReview = &v
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := helpers.StringToInt(raw)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "limit must be a number.")
			return
		}
		filter.Limit = n
	}

	orders, err := svc.Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to retrieve orders.")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func GetOrderStats(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	stats, err := svc.Orders.Stats(c.Request.Context())
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to compute order statistics.")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func CancelOrder(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	order, err := svc.Orders.CancelOrder(c.Request.Context(), c.Param("orderId"), actorID)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to cancel order.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully.",
		"order":   order,
	})
}

func RefundOrder(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	order, err := svc.Orders.RefundOrder(c.Request.Context(), c.Param("orderId"), actorID)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to refund order.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Order refunded successfully.",
		"order":   order,
	})
}
