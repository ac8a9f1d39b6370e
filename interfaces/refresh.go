package interfaces

import (
	"context"

	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

// RefreshService re-mints session tokens for every configured sub-account.
type RefreshService interface {
	// RefreshAll processes children strictly sequentially, tolerating
	// per-account failures, and persists the updated account set once at the
	// end. Fails with ErrConfigMismatch before any browser or network
	// activity when loginEmail differs from the configured parent.
	RefreshAll(ctx context.Context, loginEmail, mailToken string) (*models.RefreshResult, error)

	// SelectAccounts replaces the tracked account set with the mailbox
	// children at the given 1-based positions, carrying over tokens already
	// held for the same email. Positions are array indexes, not accountId
	// matches.
	SelectAccounts(ctx context.Context, positions []int) ([]models.GeminiAccount, error)
}
