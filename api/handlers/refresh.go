package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
)

// RefreshTokens runs a full sequential token refresh across the tracked
// accounts. The call is synchronous and can take minutes for larger sets.
func RefreshTokens(mail interfaces.MailService, refresh interfaces.RefreshService, mailStore interfaces.MailStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		creds, err := mailStore.Load(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		loginEmail := creds.Email
		if creds.Parent != nil && creds.Parent.Email != "" {
			loginEmail = creds.Parent.Email
		}

		token, err := mail.Login(ctx)
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := refresh.RefreshAll(ctx, loginEmail, token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
