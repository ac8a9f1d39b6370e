package refresh

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	er "github.com/xiaomo-123/gemini-api-service/internal/errors"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
)

// interAccountDelay spaces consecutive browser sessions so neither the mail
// provider nor the target site sees a burst.
const interAccountDelay = 2 * time.Second

type refreshService struct {
	log         logger.Logger
	mailStore   interfaces.MailStore
	geminiStore interfaces.GeminiStore
	session     interfaces.SessionService
	delay       time.Duration
}

func NewRefreshService(
	log logger.Logger,
	mailStore interfaces.MailStore,
	geminiStore interfaces.GeminiStore,
	sessionService interfaces.SessionService,
) interfaces.RefreshService {
	return &refreshService{
		log:         log,
		mailStore:   mailStore,
		geminiStore: geminiStore,
		session:     sessionService,
		delay:       interAccountDelay,
	}
}

// RefreshAll re-mints session tokens for every tracked account, strictly
// sequentially. Each account gets its own browser instance and the provider
// shares one rate limit, so there is no parallelism here. Per-account
// failures are counted and never abort the batch; the updated account set is
// persisted once at the end.
func (s *refreshService) RefreshAll(ctx context.Context, loginEmail, mailToken string) (*models.RefreshResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RefreshService.RefreshAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccountEmail(span, loginEmail)

	creds, err := s.mailStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	parentEmail := creds.Email
	if creds.Parent != nil && creds.Parent.Email != "" {
		parentEmail = creds.Parent.Email
	}
	if parentEmail != loginEmail {
		err := errors.Wrapf(er.ErrConfigMismatch, "configured parent is %s", parentEmail)
		tracing.TraceErr(span, err)
		return nil, err
	}

	cfg, err := s.geminiStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := &models.RefreshResult{}
	for i := range cfg.Accounts {
		account := &cfg.Accounts[i]
		if err := s.refreshOne(ctx, account, mailToken); err != nil {
			s.log.Warnf("token refresh failed for %s: %v", account.Email, err)
			result.FailureCount++
		} else {
			result.SuccessCount++
		}

		if i < len(cfg.Accounts)-1 {
			sleep(ctx, s.delay)
		}
	}

	if err := s.geminiStore.Save(ctx, cfg); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogFields(
		tracingLog.Int("success", result.SuccessCount),
		tracingLog.Int("failure", result.FailureCount),
	)
	s.log.Infof("token refresh done: %d ok, %d failed", result.SuccessCount, result.FailureCount)
	return result, nil
}

func (s *refreshService) refreshOne(ctx context.Context, account *models.GeminiAccount, mailToken string) error {
	if account.AccountID == nil {
		return errors.Errorf("account %s has no provider account id", account.Email)
	}

	session, err := s.session.CreateSession(ctx, account.Email, *account.AccountID, mailToken)
	if err != nil {
		return err
	}
	if session.RedirectTimedOutOnOnboarding {
		s.log.Warnf("session for %s extracted tokens after an onboarding redirect timeout", account.Email)
	}

	account.Tokens = &session.Tokens
	account.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	account.SkipReason = ""
	account.SkipTime = ""
	return nil
}

// SelectAccounts replaces the tracked account set with the mailbox children
// at the given positions. Positions are 1-based indexes into the children
// array, not accountId lookups; a reordered children list therefore changes
// what a stored selection means.
func (s *refreshService) SelectAccounts(ctx context.Context, positions []int) ([]models.GeminiAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RefreshService.SelectAccounts")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "positions", positions)

	creds, err := s.mailStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	cfg, err := s.geminiStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	existing := make(map[string]models.GeminiAccount, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		existing[account.Email] = account
	}

	selected := make([]models.GeminiAccount, 0, len(positions))
	for _, pos := range positions {
		if pos < 1 || pos > len(creds.Children) {
			s.log.Warnf("selection position %d is out of range, %d children", pos, len(creds.Children))
			continue
		}
		child := creds.Children[pos-1]
		account := models.GeminiAccount{
			Email:     child.Email,
			AccountID: child.AccountID,
		}
		// carry over tokens already minted for the same mailbox
		if prev, ok := existing[child.Email]; ok {
			account.Tokens = prev.Tokens
			account.LastUpdated = prev.LastUpdated
		}
		selected = append(selected, account)
	}

	cfg.Accounts = selected
	if err := s.geminiStore.Save(ctx, cfg); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return selected, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
