package mailapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "github.com/xiaomo-123/gemini-api-service/internal/errors"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

type memMailStore struct {
	mu    sync.Mutex
	creds *models.MailCredentials
	saves int
}

func (m *memMailStore) Load(ctx context.Context) (*models.MailCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.creds
	return &copied, nil
}

func (m *memMailStore) Save(ctx context.Context, creds *models.MailCredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	m.saves++
	return nil
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func ok(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{"code": 200, "message": "success", "data": data})
}

func fail(w http.ResponseWriter, code int, message string) {
	json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": message})
}

func newService(t *testing.T, handler http.Handler, creds *models.MailCredentials) (*memMailStore, *mailService) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if creds == nil {
		creds = &models.MailCredentials{Email: "parent@example.com", Password: "pw", Domain: "example.com"}
	}
	creds.BaseURL = server.URL

	store := &memMailStore{creds: creds}
	svc := NewMailService(getLogger(), store).(*mailService)
	return store, svc
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "parent@example.com" && body["password"] == "pw" {
			ok(w, map[string]string{"token": "tok-123"})
			return
		}
		fail(w, 401, "bad credentials")
	})

	_, svc := newService(t, mux, nil)

	token, err := svc.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		fail(w, 401, "bad credentials")
	})

	_, svc := newService(t, mux, nil)

	_, err := svc.Login(context.Background())
	assert.ErrorIs(t, err, er.ErrAuthFailed)
}

func TestLoginMissingCredentials(t *testing.T) {
	_, svc := newService(t, http.NewServeMux(), &models.MailCredentials{Domain: "example.com"})

	_, err := svc.Login(context.Background())
	assert.ErrorIs(t, err, er.ErrAuthFailed)
}

func TestListAccountsPartitionsParentAndChildren(t *testing.T) {
	id := func(n int64) *int64 { return &n }
	mux := http.NewServeMux()
	mux.HandleFunc("/api/account/list", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"accounts": []models.MailAccount{
			{Email: "a@example.com", AccountID: id(1)},
			{Email: "parent@example.com", AccountID: id(2)},
			{Email: "b@example.com", AccountID: id(3)},
		}})
	})

	store, svc := newService(t, mux, nil)

	list, err := svc.ListAccounts(context.Background(), "tok")
	require.NoError(t, err)

	require.NotNil(t, list.Parent)
	assert.Equal(t, "parent@example.com", list.Parent.Email)
	assert.Equal(t, int64(2), *list.Parent.AccountID)
	assert.Len(t, list.Children, 2)
	assert.Equal(t, len(list.Children)+1, 3)

	// snapshot persisted
	assert.Equal(t, 1, store.saves)
	assert.NotEmpty(t, store.creds.SnapshotAt)
	assert.Len(t, store.creds.Children, 2)
}

func TestListAccountsSynthesizesParent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/account/list", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"accounts": []models.MailAccount{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
		}})
	})

	_, svc := newService(t, mux, nil)

	list, err := svc.ListAccounts(context.Background(), "tok")
	require.NoError(t, err)

	require.NotNil(t, list.Parent)
	assert.Equal(t, "parent@example.com", list.Parent.Email)
	assert.Nil(t, list.Parent.AccountID)
	assert.Len(t, list.Children, 2)
}

func TestCreateAccountGeneratesAddress(t *testing.T) {
	var submitted string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/account/add", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		submitted = body["email"]
		ok(w, models.MailAccount{Email: submitted})
	})

	_, svc := newService(t, mux, nil)

	account, err := svc.CreateAccount(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, submitted, account.Email)
	assert.Regexp(t, `^[a-z0-9]{15}@example\.com$`, account.Email)
}

func TestDeleteAccountProviderFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/account/delete", func(w http.ResponseWriter, r *http.Request) {
		fail(w, 404, "no such account")
	})

	_, svc := newService(t, mux, nil)

	err := svc.DeleteAccount(context.Background(), "tok", 99)
	assert.ErrorIs(t, err, er.ErrAccountNotFound)
}

func TestBatchCreateAccountsIsolatesFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/account/add", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%3 == 0 {
			fail(w, 500, "provider hiccup")
			return
		}
		ok(w, models.MailAccount{Email: fmt.Sprintf("acct%d@example.com", n)})
	})

	_, svc := newService(t, mux, nil)

	result, err := svc.BatchCreateAccounts(context.Background(), "tok", 9)
	require.NoError(t, err)
	assert.Equal(t, 9, len(result.Created)+result.Failed)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, result.Created, 6)
}

func TestGetLatestVerificationCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/email/list", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"emails": []models.EmailSummary{
			{ID: 3, Subject: "newsletter", Content: "nothing here"},
			{ID: 2, Subject: "安全提醒", Content: "您的验证代码为 662211，十分钟内有效", From: "noreply@provider.com", Time: "2026-08-30 10:00:00"},
		}})
	})

	_, svc := newService(t, mux, nil)

	code, err := svc.GetLatestVerificationCode(context.Background(), "tok", 7)
	require.NoError(t, err)
	assert.Equal(t, "662211", code.Code)
	assert.Equal(t, "安全提醒", code.Subject)
	assert.Equal(t, "noreply@provider.com", code.From)
}

func TestGetLatestVerificationCodeNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/email/list", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"emails": []models.EmailSummary{
			{ID: 1, Subject: "hello", Content: "no codes"},
		}})
	})

	_, svc := newService(t, mux, nil)

	_, err := svc.GetLatestVerificationCode(context.Background(), "tok", 7)
	assert.ErrorIs(t, err, er.ErrNoCodeEmail)
}

func TestFindCodeBySubjectFetchesDetailWhenListOmitsBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/email/list", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"emails": []models.EmailSummary{
			{ID: 8, Subject: "您的 Gemini 验证码"},
		}})
	})
	mux.HandleFunc("/api/email/detail", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "8", r.URL.Query().Get("id"))
		ok(w, models.EmailDetail{ID: 8, Subject: "您的 Gemini 验证码", Content: "您的一次性验证码为：\n\nKX92P1"})
	})

	_, svc := newService(t, mux, nil)

	code, err := svc.FindCodeBySubject(context.Background(), "tok", 7, "您的 Gemini 验证码")
	require.NoError(t, err)
	assert.Equal(t, "KX92P1", code)
}

func TestFindCodeBySubjectNoMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/email/list", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]interface{}{"emails": []models.EmailSummary{
			{ID: 1, Subject: "something else", Content: "您的一次性验证码为：\n\nKX92P1"},
		}})
	})

	_, svc := newService(t, mux, nil)

	_, err := svc.FindCodeBySubject(context.Background(), "tok", 7, "您的 Gemini 验证码")
	assert.ErrorIs(t, err, er.ErrNoCodeEmail)
}
