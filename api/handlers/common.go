package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	er "github.com/xiaomo-123/gemini-api-service/internal/errors"
)

// respondError maps domain errors onto HTTP statuses. Upstream collaborator
// failures surface as gateway errors, not server errors.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, er.ErrAuthFailed), errors.Is(err, er.ErrPoolAuthFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, er.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, er.ErrConfigMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, er.ErrVerificationTimeout), errors.Is(err, er.ErrConnectionTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, er.ErrProviderFailure), er.IsIncompleteToken(err):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
