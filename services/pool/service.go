package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
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

const (
	// spacing between consecutive remote calls keeps the pool service from
	// rate-limiting a sweep
	deleteSpacing = 300 * time.Millisecond
	checkSpacing  = 500 * time.Millisecond
)

type poolService struct {
	log           logger.Logger
	geminiStore   interfaces.GeminiStore
	client        *http.Client
	deleteSpacing time.Duration
	checkSpacing  time.Duration
}

func NewPoolService(log logger.Logger, geminiStore interfaces.GeminiStore) interfaces.PoolService {
	return &poolService{
		log:           log,
		geminiStore:   geminiStore,
		client:        &http.Client{Timeout: 30 * time.Second},
		deleteSpacing: deleteSpacing,
		checkSpacing:  checkSpacing,
	}
}

// UpdatePool wipes the remote pool and re-adds every local account holding a
// complete token set. The wipe tolerates individual delete failures; the run
// is not transactional and a crash mid-way leaves the pool partially updated.
func (s *poolService) UpdatePool(ctx context.Context) (*models.PoolUpdateResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "PoolService.UpdatePool")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	cfg, err := s.geminiStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	base, token, err := s.login(ctx, cfg)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	existing, err := s.listAccounts(ctx, base, token)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	for i, account := range existing {
		if err := s.deleteAccount(ctx, base, token, account.ID); err != nil {
			s.log.Warnf("failed to delete pool entry %s: %v", account.ID, err)
		}
		if i < len(existing)-1 {
			sleep(ctx, s.deleteSpacing)
		}
	}

	result := &models.PoolUpdateResult{}
	for i := range cfg.Accounts {
		account := &cfg.Accounts[i]
		if !account.Syncable() {
			s.log.Infof("skipping %s: no complete token set", account.Email)
			result.SkippedCount++
			continue
		}
		if err := s.addAccount(ctx, base, token, account, cfg.UserAgent); err != nil {
			s.log.Warnf("failed to add %s to pool: %v", account.Email, err)
			result.SkippedCount++
			continue
		}
		result.AddedCount++
	}

	remaining, err := s.listAccounts(ctx, base, token)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	result.TotalCount = len(remaining)

	span.LogFields(
		tracingLog.Int("added", result.AddedCount),
		tracingLog.Int("skipped", result.SkippedCount),
		tracingLog.Int("total", result.TotalCount),
	)
	s.log.Infof("pool update done: %d added, %d skipped, %d total", result.AddedCount, result.SkippedCount, result.TotalCount)
	return result, nil
}

// CleanInvalid health-checks every pool entry and deletes the ones that fail.
func (s *poolService) CleanInvalid(ctx context.Context) (*models.PoolCleanResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "PoolService.CleanInvalid")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	cfg, err := s.geminiStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	base, token, err := s.login(ctx, cfg)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	accounts, err := s.listAccounts(ctx, base, token)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := &models.PoolCleanResult{}
	for i, account := range accounts {
		if s.testAccount(ctx, base, token, account.ID) {
			result.ValidCount++
		} else {
			result.InvalidCount++
			if err := s.deleteAccount(ctx, base, token, account.ID); err != nil {
				s.log.Warnf("failed to delete invalid pool entry %s: %v", account.ID, err)
			}
		}
		if i < len(accounts)-1 {
			sleep(ctx, s.checkSpacing)
		}
	}

	span.LogFields(
		tracingLog.Int("valid", result.ValidCount),
		tracingLog.Int("invalid", result.InvalidCount),
	)
	s.log.Infof("pool clean done: %d valid, %d invalid", result.ValidCount, result.InvalidCount)
	return result, nil
}

func (s *poolService) login(ctx context.Context, cfg *models.GeminiConfig) (base, token string, err error) {
	if cfg.PoolURL == "" {
		return "", "", errors.New("pool url is not configured")
	}
	base = strings.TrimRight(cfg.PoolURL, "/")

	body, _ := json.Marshal(map[string]string{"password": cfg.AdminPassword})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", errors.Wrap(er.ErrPoolAuthFailed, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", errors.Wrapf(er.ErrPoolAuthFailed, "login returned status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", errors.Wrap(er.ErrPoolAuthFailed, "failed to decode login response")
	}
	if payload.Token == "" {
		return "", "", errors.Wrap(er.ErrPoolAuthFailed, "login response carries no token")
	}
	return base, payload.Token, nil
}

func (s *poolService) listAccounts(ctx context.Context, base, token string) ([]models.PoolAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/accounts", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pool accounts")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("pool account list returned status %d", resp.StatusCode)
	}

	var payload struct {
		Accounts []models.PoolAccount `json:"accounts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode pool account list")
	}
	return payload.Accounts, nil
}

func (s *poolService) addAccount(ctx context.Context, base, token string, account *models.GeminiAccount, userAgent string) error {
	body, _ := json.Marshal(map[string]string{
		"team_id":      account.Tokens.TeamID,
		"secure_c_ses": account.Tokens.SecureCSes,
		"host_c_oses":  account.Tokens.HostCOses,
		"csesidx":      account.Tokens.Csesidx,
		"email":        account.Email,
		"user_agent":   userAgent,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/accounts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("pool add returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// testAccount probes the pool's per-entry health endpoint. Any transport
// error or non-2xx status marks the entry invalid.
func (s *poolService) testAccount(ctx context.Context, base, token, id string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/accounts/%s/test", base, id), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warnf("health check for pool entry %s failed: %v", id, err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

func (s *poolService) deleteAccount(ctx context.Context, base, token, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/api/accounts/%s", base, id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("pool delete returned status %d", resp.StatusCode)
	}
	return nil
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
