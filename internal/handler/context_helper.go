package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dat-progress-api/internal/middleware"
	"github.com/noah-isme/dat-progress-api/internal/models"
)

type persistenceReporter interface {
	PersistenceMeta(accountID string) map[string]interface{}
}

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

func accountFromContext(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.AccountID == "" {
		return "", false
	}
	return claims.AccountID, true
}

// ledgerMeta merges the account's storage mode into the response meta.
func ledgerMeta(c *gin.Context, reporter persistenceReporter, accountID string) map[string]interface{} {
	if reporter != nil {
		for key, value := range reporter.PersistenceMeta(accountID) {
			middleware.SetMeta(c, key, value)
		}
	}
	return middleware.ExtractMeta(c)
}
