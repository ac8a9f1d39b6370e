package mailapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	er "github.com/xiaomo-123/gemini-api-service/internal/errors"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
	"github.com/xiaomo-123/gemini-api-service/internal/utils"
)

// batchCreateWidth bounds concurrent account-creation calls against the
// provider.
const batchCreateWidth = 5

type mailService struct {
	log       logger.Logger
	mailStore interfaces.MailStore
	client    *http.Client
}

func NewMailService(log logger.Logger, mailStore interfaces.MailStore) interfaces.MailService {
	return &mailService{
		log:       log,
		mailStore: mailStore,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope is the uniform provider response wrapper. Any code other than 200
// is a failure regardless of the HTTP status.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call issues one provider request and unwraps the response envelope. The
// base URL is resolved from the current credentials document on every call so
// a config reload takes effect immediately.
func (s *mailService) call(ctx context.Context, method, path, token string, query url.Values, body interface{}) (json.RawMessage, error) {
	creds, err := s.mailStore.Load(ctx)
	if err != nil {
		return nil, err
	}
	if creds.BaseURL == "" {
		return nil, errors.New("mail provider base URL is not configured")
	}

	endpoint := creds.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call mail provider %s", path)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mail provider response")
	}

	var env envelope
	if err := json.Unmarshal(responseBody, &env); err != nil {
		return nil, errors.Wrapf(err, "failed to parse mail provider response for %s", path)
	}
	if env.Code != 200 {
		return nil, errors.Wrapf(er.ErrProviderFailure, "%s: code %d: %s", path, env.Code, env.Message)
	}
	return env.Data, nil
}

func (s *mailService) Login(ctx context.Context) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.Login")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	creds, err := s.mailStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if creds.Email == "" || creds.Password == "" {
		err := errors.Wrap(er.ErrAuthFailed, "mail credentials are not configured")
		tracing.TraceErr(span, err)
		return "", err
	}

	data, err := s.call(ctx, http.MethodPost, "/api/login", "", nil, map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		if errors.Is(err, er.ErrProviderFailure) {
			return "", errors.Wrap(er.ErrAuthFailed, err.Error())
		}
		return "", err
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to parse login response")
	}
	if result.Token == "" {
		err := errors.Wrap(er.ErrAuthFailed, "provider returned an empty token")
		tracing.TraceErr(span, err)
		return "", err
	}
	return result.Token, nil
}

func (s *mailService) ListAccounts(ctx context.Context, token string) (*models.AccountList, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.ListAccounts")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	creds, err := s.mailStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	data, err := s.call(ctx, http.MethodGet, "/api/account/list", token, nil, nil)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var result struct {
		Accounts []models.MailAccount `json:"accounts"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to parse account list")
	}

	list := partitionAccounts(creds.Email, result.Accounts)
	span.LogFields(tracingLog.Int("children", len(list.Children)))

	// persist a timestamped snapshot alongside the credentials
	creds.Parent = list.Parent
	creds.Children = list.Children
	creds.SnapshotAt = time.Now().UTC().Format(time.RFC3339)
	if err := s.mailStore.Save(ctx, creds); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return list, nil
}

// partitionAccounts splits the provider list into the configured login
// identity and its children. When no entry matches the login email an empty
// parent is synthesized so callers always see exactly one parent.
func partitionAccounts(loginEmail string, accounts []models.MailAccount) *models.AccountList {
	list := &models.AccountList{Children: []models.MailAccount{}}
	for _, account := range accounts {
		if account.Email == loginEmail && list.Parent == nil {
			parent := account
			list.Parent = &parent
			continue
		}
		list.Children = append(list.Children, account)
	}
	if list.Parent == nil {
		list.Parent = &models.MailAccount{Email: loginEmail}
	}
	return list
}

func (s *mailService) CreateAccount(ctx context.Context, token string) (*models.MailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.CreateAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	creds, err := s.mailStore.Load(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if creds.Domain == "" {
		err := errors.New("mail domain is not configured")
		tracing.TraceErr(span, err)
		return nil, err
	}

	email := fmt.Sprintf("%s@%s", utils.GenerateMailboxLocalPart(), creds.Domain)
	if validation := mailvalidate.ValidateEmailSyntax(email); !validation.IsValid {
		err := errors.Errorf("generated address %s is not valid", email)
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagAccountEmail(span, email)

	data, err := s.call(ctx, http.MethodPost, "/api/account/add", token, nil, map[string]string{
		"email": email,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var account models.MailAccount
	if err := json.Unmarshal(data, &account); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to parse created account")
	}
	if account.Email == "" {
		account.Email = email
	}
	return &account, nil
}

func (s *mailService) BatchCreateAccounts(ctx context.Context, token string, count int) (*models.BatchCreateResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.BatchCreateAccounts")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.Int("count", count))

	if count <= 0 {
		return nil, errors.New("count must be positive")
	}

	var (
		mu     sync.Mutex
		result models.BatchCreateResult
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batchCreateWidth)
	for i := 0; i < count; i++ {
		group.Go(func() error {
			account, err := s.CreateAccount(groupCtx, token)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// one failed creation must not cancel its siblings
				s.log.Warnf("account creation failed: %v", err)
				result.Failed++
				return nil
			}
			result.Created = append(result.Created, *account)
			return nil
		})
	}
	_ = group.Wait()

	return &result, nil
}

func (s *mailService) DeleteAccount(ctx context.Context, token string, accountID int64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.DeleteAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatInt(accountID, 10))

	query := url.Values{}
	query.Set("id", strconv.FormatInt(accountID, 10))

	if _, err := s.call(ctx, http.MethodDelete, "/api/account/delete", token, query, nil); err != nil {
		tracing.TraceErr(span, err)
		if errors.Is(err, er.ErrProviderFailure) {
			return errors.Wrapf(er.ErrAccountNotFound, "failed to delete account %d", accountID)
		}
		return err
	}
	return nil
}
