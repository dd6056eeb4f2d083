package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/logger"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

func StaffLogin(c *gin.Context) {
	var req LoginRequest
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

	var staff models.Staff
	if err := gormDB.Where("email = ?", strings.ToLower(req.Email)).First(&staff).Error; err != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.Password), []byte(req.Password)); err != nil {
		logger.WithContext(c.Request.Context()).Warn("staff login failed", zap.String("email", staff.Email))
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if !staff.IsActive {
		helpers.RespondWithError(c, http.StatusForbidden, "Account disabled.")
		return
	}

	tokenString, err := helpers.GenerateToken(staff.ID, staff.Role, models.PrincipalStaff)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
		"user": gin.H{
			"id":    staff.ID,
			"email": staff.Email,
			"name":  staff.Name,
			"role":  staff.Role,
		},
	})
}

func StaffMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var staff models.Staff
	if err := gormDB.Where("id = ?", userID).First(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving user.")
		return
	}
	c.JSON(http.StatusOK, staff)
}

func CustomerRegister(c *gin.Context) {
	var req RegisterRequest
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

	email := strings.ToLower(req.Email)
	var existing models.Customer
	if result := gormDB.Where("email = ?", email).First(&existing); result.Error == nil {
		helpers.RespondWithError(c, http.StatusConflict, "User already exists.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to hash the password.")
		return
	}

	customer := models.Customer{
		Name:     req.Name,
		Email:    email,
		Phone:    req.Phone,
		Document: req.Document,
		Password: string(hashedPassword),
	}
	if err := gormDB.Create(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			helpers.RespondWithError(c, http.StatusConflict, "User already exists.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create user.")
		return
	}

	tokenString, err := helpers.GenerateToken(customer.ID, models.RoleCustomer, models.PrincipalCustomer)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully.",
		"token":   tokenString,
		"user":    customer,
	})
}

func CustomerLogin(c *gin.Context) {
	var req LoginRequest
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

	var customer models.Customer
	if err := gormDB.Where("email = ?", strings.ToLower(req.Email)).First(&customer).Error; err != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte(req.Password)); err != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	tokenString, err := helpers.GenerateToken(customer.ID, models.RoleCustomer, models.PrincipalCustomer)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
		"user":  customer,
	})
}

func CustomerMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var customer models.Customer
	if err := gormDB.Where("id = ?", userID).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving user.")
		return
	}
	c.JSON(http.StatusOK, customer)
}

func ChangeCustomerPassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. New password must be at least 6 characters.")
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var customer models.Customer
	if err := gormDB.Where("id = ?", userID).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving user.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte(req.CurrentPassword)); err != nil {
		logger.WithContext(c.Request.Context()).Warn("customer password change refused", zap.String("customer_id", customer.ID.String()))
		helpers.RespondWithError(c, http.StatusBadRequest, "Current password is incorrect.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to hash the password.")
		return
	}
	if err := gormDB.Model(&customer).Update("password", string(hashedPassword)).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update password.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully."})
}

func CustomerOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}
	orders, err := svc.Orders.ListCustomerOrders(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondWithServiceError(c, err, "Failed to retrieve orders.")
		return
	}
	c.JSON(http.StatusOK, orders)
}
