package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/phonebook-api/internal/middleware"
	"github.com/noah-isme/phonebook-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext returns the display name of the authenticated user, or an
// empty string when the request carries no identity.
func actorFromContext(c *gin.Context) string {
	return claimsFromContext(c).Actor()
}
