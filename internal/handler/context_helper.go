package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/middleware"
	"github.com/grantos/grantos-api/internal/models"
)

// claimsFromContext reads the authenticated user off the gin context.
// Returns nil when the route was reached without passing the JWT guard.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	if claims, ok := value.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
