package handlers

import (
	"net/http"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

const qrSize = 320

// CreateOrder starts checkout for a single visit date. Prices come from the
// catalog; a client-side total that disagrees is refused.
func CreateOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	if c.GetString("principal_type") == models.PrincipalCustomer {
		customerID := c.MustGet("user_id").(uuid.UUID)
		req.CustomerID = &customerID
		if req.Customer.Name == "" || req.Customer.Email == "" {
			if db, exists := c.Get("db"); exists {
				var customer models.Customer
				if err := db.(*gorm.DB).Where("id = ?", customerID).First(&customer).Error; err == nil {
					req.Customer = customer.Snapshot()
				}
			}
		}
	}

	result, err := svc.Orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to create order.")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func GetOrder(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	order, err := svc.Orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Error retrieving order.")
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderQR renders the admission code of an approved order as a PNG.
func GetOrderQR(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	order, err := svc.Orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Error retrieving order.")
		return
	}
	if order.PaymentStatus != models.PaymentApproved || order.TicketCode == nil {
		helpers.RespondWithServiceError(c, models.ErrTicketNotIssued, "")
		return
	}

	png, err := qrcode.Encode(*order.TicketCode, qrcode.Medium, qrSize)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to render ticket QR code.")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
