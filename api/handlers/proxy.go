package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

// GetProxy returns the effective proxy configuration, password omitted.
func GetProxy(proxy interfaces.ProxyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := proxy.Resolve(c.Request.Context())
		cfg.Password = ""
		c.JSON(http.StatusOK, cfg)
	}
}

func SaveProxy(proxy interfaces.ProxyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg models.ProxyConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cfg.Type != models.ProxyHTTP && cfg.Type != models.ProxySocks5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proxy type must be http or socks5"})
			return
		}

		if err := proxy.Save(c.Request.Context(), &cfg); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": true})
	}
}

// TestProxy probes connectivity through the persisted proxy configuration.
func TestProxy(proxy interfaces.ProxyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cfg := proxy.Resolve(ctx)
		ok := proxy.Probe(ctx, cfg)
		c.JSON(http.StatusOK, gin.H{"reachable": ok, "enabled": cfg.Enabled})
	}
}
