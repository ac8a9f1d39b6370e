package repository

import (
	"os"
	"path/filepath"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
)

// Repositories aggregates the three persisted YAML documents.
type Repositories struct {
	MailStore   interfaces.MailStore
	GeminiStore interfaces.GeminiStore
	ProxyStore  interfaces.ProxyStore
}

func InitRepositories(dataDir string) (*Repositories, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	return &Repositories{
		MailStore:   NewMailStore(filepath.Join(dataDir, "mail.yaml")),
		GeminiStore: NewGeminiStore(filepath.Join(dataDir, "gemini.yaml")),
		ProxyStore:  NewProxyStore(filepath.Join(dataDir, "proxy.yaml")),
	}, nil
}
