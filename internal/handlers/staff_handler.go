package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type StaffRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=staff admin"`
}

func CreateStaff(c *gin.Context) {
	var req StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to hash the password.")
		return
	}

	staff := models.Staff{
		Email:    strings.ToLower(req.Email),
		Name:     req.Name,
		Password: string(hashedPassword),
		Role:     req.Role,
		IsActive: true,
	}
	if err := gormDB.Create(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			helpers.RespondWithServiceError(c, models.ErrStaffExists, "")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create staff member.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Staff member created successfully.",
		"staff":   staff,
	})
}

func ListStaff(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var staff []models.Staff
	if err := gormDB.Order("name ASC").Find(&staff).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving staff.")
		return
	}
	c.JSON(http.StatusOK, staff)
}

// DeleteStaff disables the account. Redemptions keep pointing at it.
func DeleteStaff(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if c.Param("id") == userID.String() {
		helpers.RespondWithError(c, http.StatusBadRequest, "You cannot disable your own account.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	res := gormDB.Model(&models.Staff{}).Where("id = ?", c.Param("id")).Update("is_active", false)
	if res.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to disable staff member.")
		return
	}
	if res.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "Staff member not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Staff member disabled successfully."})
}
