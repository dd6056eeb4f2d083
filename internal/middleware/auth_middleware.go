package middleware

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errNoToken = errors.New("authorization token required")

type principal struct {
	userID uuid.UUID
	role   string
	kind   string
}

func parseBearer(c *gin.Context) (*principal, error) {
	tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found || tokenString == "" {
		return nil, errNoToken
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, helpers.ErrMissingJWTSecret
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errors.New("invalid token subject")
	}
	role, _ := claims["role"].(string)
	kind, _ := claims["type"].(string)
	return &principal{userID: userID, role: role, kind: kind}, nil
}

func (p *principal) store(c *gin.Context) {
	c.Set("user_id", p.userID)
	c.Set("role", p.role)
	c.Set("principal_type", p.kind)
}

// JWTAuthMiddleware validates the bearer token and stores user_id, role and
// principal_type on the context.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := parseBearer(c)
		switch {
		case errors.Is(err, helpers.ErrMissingJWTSecret):
			helpers.RespondWithError(c, http.StatusInternalServerError, "JWT_SECRET not configured.")
			c.Abort()
			return
		case errors.Is(err, errNoToken):
			helpers.RespondWithError(c, http.StatusUnauthorized, "Authorization token required.")
			c.Abort()
			return
		case err != nil:
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token.")
			c.Abort()
			return
		}
		p.store(c)
		c.Next()
	}
}

// OptionalJWTAuthMiddleware identifies the caller when a valid token is sent
// and lets anonymous requests through unchanged.
func OptionalJWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, err := parseBearer(c); err == nil {
			p.store(c)
		}
		c.Next()
	}
}

// RequireRole lets the request through only if the token carries one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to access this resource.")
		c.Abort()
	}
}
