package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TicketTypeRequest struct {
	TicketID    string        `json:"ticket_id" binding:"required"`
	Name        string        `json:"name" binding:"required"`
	Price       *models.Money `json:"price" binding:"required"`
	Description string        `json:"description"`
	Features    []string      `json:"features"`
	IsActive    *bool         `json:"is_active"`
}

type TicketTypeUpdateRequest struct {
	Name        *string       `json:"name"`
	Price       *models.Money `json:"price"`
	Description *string       `json:"description"`
	Features    []string      `json:"features"`
	IsActive    *bool         `json:"is_active"`
}

func ListTicketTypes(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	query := gormDB.Order("price ASC")
	if c.GetString("role") != models.RoleAdmin {
		query = query.Where("is_active = ?", true)
	}
	var tickets []models.TicketType
	if err := query.Find(&tickets).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving tickets.")
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func GetTicketType(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var ticket models.TicketType
	if err := gormDB.Where("ticket_id = ? AND is_active = ?", c.Param("ticketId"), true).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving ticket.")
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func CreateTicketType(c *gin.Context) {
	var req TicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	if *req.Price < 0 {
		helpers.RespondWithError(c, http.StatusBadRequest, "Price must not be negative.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	ticket := models.TicketType{
		TicketID:    strings.ToLower(strings.TrimSpace(req.TicketID)),
		Name:        req.Name,
		Price:       *req.Price,
		Description: req.Description,
		Features:    req.Features,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := gormDB.Create(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			helpers.RespondWithServiceError(c, models.ErrTicketTypeExists, "")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create ticket.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Ticket created successfully.",
		"ticket":  ticket,
	})
}

// UpdateTicketType changes catalog data only. Orders keep the name and price
// they were created with.
func UpdateTicketType(c *gin.Context) {
	var req TicketTypeUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}
	if req.Price != nil && *req.Price < 0 {
		helpers.RespondWithError(c, http.StatusBadRequest, "Price must not be negative.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var ticket models.TicketType
	if err := gormDB.Where("ticket_id = ?", c.Param("ticketId")).First(&ticket).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
		return
	}

	if req.Name != nil {
		ticket.Name = *req.Name
	}
	if req.Price != nil {
		ticket.Price = *req.Price
	}
	if req.Description != nil {
		ticket.Description = *req.Description
	}
	if req.Features != nil {
		ticket.Features = req.Features
	}
	if req.IsActive != nil {
		ticket.IsActive = *req.IsActive
	}

	if err := gormDB.Save(&ticket).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update ticket.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Ticket updated successfully.",
		"ticket":  ticket,
	})
}

// DeleteTicketType deactivates the ticket type; past orders still reference it.
func DeleteTicketType(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	res := gormDB.Model(&models.TicketType{}).Where("ticket_id = ?", c.Param("ticketId")).Update("is_active", false)
	if res.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete ticket.")
		return
	}
	if res.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Ticket deleted successfully.",
	})
}
