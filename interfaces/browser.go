package interfaces

import (
	"context"
	"time"

	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

// BrowserPage is the narrow browser control surface the login flow runs
// against. The production implementation drives a headless Chromium page;
// tests substitute a fake.
type BrowserPage interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the element matching selector is visible or
	// the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	// Input types text into the element matching selector, pausing delay
	// between keystrokes when delay > 0.
	Input(ctx context.Context, selector, text string, delay time.Duration) error
	ClearInput(ctx context.Context, selector string) error
	URL(ctx context.Context) (string, error)
	// Cookie returns the value of the named cookie, or "" when absent.
	Cookie(ctx context.Context, name string) (string, error)
	Close() error
}

// BrowserLaunchOptions configures one isolated browser instance.
type BrowserLaunchOptions struct {
	ProfileDir string
	Proxy      *models.ProxyConfig
	UserAgent  string
}

// BrowserLauncher starts isolated browser instances.
type BrowserLauncher interface {
	Launch(ctx context.Context, opts BrowserLaunchOptions) (BrowserPage, error)
}

// SessionResult is the outcome of one successful browser login session.
// RedirectTimedOutOnOnboarding marks the tolerated fallback where the
// post-login redirect never left the onboarding page but token extraction
// still succeeded; callers can distinguish it from a clean success.
type SessionResult struct {
	Tokens                       models.SessionTokens
	RedirectTimedOutOnOnboarding bool
}

// SessionService drives one end-to-end browser authentication session for a
// single account and returns the four session tokens, or fails. No partial
// token result is ever returned.
type SessionService interface {
	CreateSession(ctx context.Context, email string, mailAccountID int64, mailToken string) (*SessionResult, error)
}
