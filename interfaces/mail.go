package interfaces

import (
	"context"

	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

// MailService wraps the remote mail provider HTTP API. Every call resolves
// the provider base URL from the current credentials snapshot, so a config
// reload takes effect without restarting.
type MailService interface {
	// Login exchanges the configured credentials for a provider token.
	Login(ctx context.Context) (string, error)

	// ListAccounts partitions the provider account list into the configured
	// parent identity and its children, synthesizing an empty parent when the
	// provider list has no match. Persists a timestamped snapshot.
	ListAccounts(ctx context.Context, token string) (*models.AccountList, error)

	// CreateAccount submits a new disposable account with a random
	// 15-character local-part under the configured domain.
	CreateAccount(ctx context.Context, token string) (*models.MailAccount, error)

	// BatchCreateAccounts creates count accounts with bounded concurrency.
	// Individual failures do not cancel sibling calls.
	BatchCreateAccounts(ctx context.Context, token string, count int) (*models.BatchCreateResult, error)

	DeleteAccount(ctx context.Context, token string, accountID int64) error

	ListEmails(ctx context.Context, token string, accountID int64, size int) ([]models.EmailSummary, error)

	GetEmailDetail(ctx context.Context, token string, accountID, emailID int64) (*models.EmailDetail, error)

	// GetLatestVerificationCode scans the 10 most recent emails for the
	// provider's own verification code pattern.
	GetLatestVerificationCode(ctx context.Context, token string, accountID int64) (*models.VerificationCode, error)

	// FindCodeBySubject scans the 10 most recent emails for one whose subject
	// equals subject and returns the one-time code from its body, fetching
	// the detail endpoint when the list response omits the content. Returns
	// ErrNoCodeEmail when no matching email is present.
	FindCodeBySubject(ctx context.Context, token string, accountID int64, subject string) (string, error)
}
