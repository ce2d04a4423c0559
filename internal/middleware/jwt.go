package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/response"
)

const claimsKey = "auth.claims"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT authenticates requests via a Bearer token and stores the claims on the
// request context.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the authenticated claims, nil when the request is
// unauthenticated.
func ClaimsFrom(c *gin.Context) *models.JWTClaims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*models.JWTClaims)
	return claims
}

// ActorFrom returns the service-level actor for the authenticated request.
func ActorFrom(c *gin.Context) models.Actor {
	claims := ClaimsFrom(c)
	if claims == nil {
		return models.Actor{}
	}
	return models.ActorFromClaims(claims)
}
