package interfaces

import (
	"context"

	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

// PoolService syncs locally held session tokens to the remote account pool.
// Operations are idempotent in end state but not transactional: a crash
// mid-run leaves the pool partially updated.
type PoolService interface {
	// UpdatePool deletes every existing pool entry, then re-adds every local
	// account holding a complete token set.
	UpdatePool(ctx context.Context) (*models.PoolUpdateResult, error)

	// CleanInvalid health-checks every pool entry and deletes the failures.
	CleanInvalid(ctx context.Context) (*models.PoolCleanResult, error)
}
