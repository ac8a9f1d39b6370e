package interfaces

import (
	"context"

	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

// ProxyService resolves the persisted proxy configuration and probes its
// connectivity.
type ProxyService interface {
	// Resolve never fails: a missing or malformed proxy document yields the
	// disabled default.
	Resolve(ctx context.Context) *models.ProxyConfig

	// Probe issues one request through the proxy to a known endpoint and
	// reports whether it answered. Network errors report false, not an error.
	Probe(ctx context.Context, cfg *models.ProxyConfig) bool

	Save(ctx context.Context, cfg *models.ProxyConfig) error
}
