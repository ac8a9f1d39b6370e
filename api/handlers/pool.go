package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
)

// UpdatePool wipes the remote pool and re-adds every syncable local account.
func UpdatePool(pool interfaces.PoolService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := pool.UpdatePool(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// CleanPool health-checks every pool entry and removes the failures.
func CleanPool(pool interfaces.PoolService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := pool.CleanInvalid(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
