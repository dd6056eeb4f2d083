package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/middleware"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func getServices(c *gin.Context) (*services.Registry, bool) {
	registry := middleware.GetServices(c)
	if registry == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return nil, false
	}
	return registry, true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID type.")
		return uuid.Nil, false
	}
	return id, true
}

// activeStaff loads the caller's staff record. Tokens outlive accounts, so a
// missing or disabled record is refused even when the token is valid.
func activeStaff(c *gin.Context) (*models.Staff, bool) {
	staffID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return nil, false
	}

	var staff models.Staff
	err := db.(*gorm.DB).WithContext(c.Request.Context()).Where("id = ?", staffID).First(&staff).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		helpers.RespondWithError(c, http.StatusForbidden, "Staff account not found.")
		return nil, false
	case err != nil:
		helpers.RespondWithServiceError(c, err, "Error retrieving staff account.")
		return nil, false
	case !staff.IsActive:
		helpers.RespondWithError(c, http.StatusForbidden, "Account is disabled.")
		return nil, false
	}
	return &staff, true
}
