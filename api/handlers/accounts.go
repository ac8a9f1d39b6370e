package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
)

// ListAccounts returns the provider account list partitioned into parent and
// children, refreshing the persisted snapshot as a side effect.
func ListAccounts(mail interfaces.MailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, err := mail.Login(ctx)
		if err != nil {
			respondError(c, err)
			return
		}

		list, err := mail.ListAccounts(ctx, token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// CreateAccount provisions one disposable sub-account with a random address.
func CreateAccount(mail interfaces.MailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, err := mail.Login(ctx)
		if err != nil {
			respondError(c, err)
			return
		}

		account, err := mail.CreateAccount(ctx, token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

type batchCreateRequest struct {
	Count int `json:"count" binding:"required,min=1,max=50"`
}

func BatchCreateAccounts(mail interfaces.MailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req batchCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		token, err := mail.Login(ctx)
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := mail.BatchCreateAccounts(ctx, token, req.Count)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func DeleteAccount(mail interfaces.MailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
			return
		}

		ctx := c.Request.Context()
		token, err := mail.Login(ctx)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := mail.DeleteAccount(ctx, token, accountID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": accountID})
	}
}

type selectAccountsRequest struct {
	// 1-based positions into the children array
	Positions []int `json:"positions" binding:"required,min=1"`
}

// SelectAccounts replaces the tracked account set with the children at the
// requested positions.
func SelectAccounts(refresh interfaces.RefreshService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selectAccountsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		selected, err := refresh.SelectAccounts(c.Request.Context(), req.Positions)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": selected, "count": len(selected)})
	}
}
