package middleware

import (
	"github.com/farellandr/aquapark/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db.WithContext(c.Request.Context()))
		c.Next()
	}
}

func ServicesMiddleware(registry *services.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("services", registry)
		c.Next()
	}
}

func GetServices(c *gin.Context) *services.Registry {
	registry, exists := c.Get("services")
	if !exists {
		return nil
	}
	return registry.(*services.Registry)
}
