package handlers

import (
	"net/http"
	"strconv"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/gin-gonic/gin"
)

type AvailabilityRequest struct {
	Date         string `json:"date" binding:"required"`
	TotalTickets *int   `json:"total_tickets" binding:"required"`
}

type AvailabilityUpdateRequest struct {
	TotalTickets *int  `json:"total_tickets"`
	IsActive     *bool `json:"is_active"`
}

func GetActiveDates(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	dates, err := svc.Availability.ListActiveDates(c.Request.Context())
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to retrieve available dates.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

// CheckAvailability answers whether quantity tickets are still on sale for date.
// It never reserves; the answer may be stale by the time the customer pays.
func CheckAvailability(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	quantity := 1
	if raw := c.Query("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Quantity must be a number.")
			return
		}
		quantity = n
	}

	result, err := svc.Availability.CheckAvailability(c.Request.Context(), c.Query("date"), quantity)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to check availability.")
		return
	}
	c.JSON(http.StatusOK, result)
}

func ListAvailability(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	dates, err := svc.Availability.List(c.Request.Context())
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to retrieve availability.")
		return
	}
	c.JSON(http.StatusOK, dates)
}

func CreateAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	a, err := svc.Availability.Create(c.Request.Context(), req.Date, *req.TotalTickets)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to create availability.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "Availability created successfully.",
		"availability": a,
	})
}

func UpdateAvailability(c *gin.Context) {
	var req AvailabilityUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	if req.TotalTickets == nil && req.IsActive == nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Nothing to update.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	a, err := svc.Availability.Update(c.Request.Context(), c.Param("date"), req.TotalTickets, req.IsActive)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to update availability.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Availability updated successfully.",
		"availability": a,
	})
}

func DeleteAvailability(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}
	if err := svc.Availability.Delete(c.Request.Context(), c.Param("date")); err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to delete availability.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Availability deleted successfully."})
}
