package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursecap-api/internal/middleware"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
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

// intParam reads a positive integer path parameter.
func intParam(c *gin.Context, name string) (int, error) {
	return positiveInt(c.Param(name), name)
}

// intQuery reads a positive integer query parameter.
func intQuery(c *gin.Context, name string) (int, error) {
	return positiveInt(c.Query(name), name)
}

func positiveInt(raw, name string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return value, nil
}
