package interfaces

import (
	"context"

	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

// Stores load and save whole YAML documents. There is no partial patching:
// callers read, transform in memory, and write back.

type MailStore interface {
	Load(ctx context.Context) (*models.MailCredentials, error)
	Save(ctx context.Context, creds *models.MailCredentials) error
}

type GeminiStore interface {
	Load(ctx context.Context) (*models.GeminiConfig, error)
	Save(ctx context.Context, cfg *models.GeminiConfig) error
}

type ProxyStore interface {
	Load(ctx context.Context) (*models.ProxyConfig, error)
	Save(ctx context.Context, cfg *models.ProxyConfig) error
}
