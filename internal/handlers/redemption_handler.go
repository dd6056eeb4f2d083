package handlers

import (
	"net/http"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/services"
	"github.com/gin-gonic/gin"
)

type ValidateTicketRequest struct {
	TicketCode string `json:"ticket_code" binding:"required"`
}

func LookupTicket(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	if _, ok := activeStaff(c); !ok {
		return
	}
	info, err := svc.Redemption.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Error retrieving ticket.")
		return
	}
	c.JSON(http.StatusOK, info)
}

// ValidateTicket admits a ticket at the gate. Refusals are reported with 200
// and an outcome; the scanner shows them, they are not request errors.
func ValidateTicket(c *gin.Context) {
	var req ValidateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}
	staff, ok := activeStaff(c)
	if !ok {
		return
	}

	gate := services.Gatekeeper{ID: staff.ID, Name: staff.Name}
	result, err := svc.Redemption.Redeem(c.Request.Context(), req.TicketCode, gate)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to validate ticket.")
		return
	}
	c.JSON(http.StatusOK, result)
}
