package browser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomo-123/gemini-api-service/config"
	"github.com/xiaomo-123/gemini-api-service/interfaces"
	er "github.com/xiaomo-123/gemini-api-service/internal/errors"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func testSiteConfig(t *testing.T) *config.GeminiSiteConfig {
	return &config.GeminiSiteConfig{
		LoginURL:            "https://site.example/login",
		VerificationSubject: "您的 Gemini 验证码",
		EmailSelector:       "#email",
		ContinueSelector:    "#continue",
		CodeSelector:        "#code",
		VerifySelector:      "#verify",
		DisplayNameSelector: "#displayName",
		OnboardingSelector:  "#onboard",
		ProfileRoot:         t.TempDir(),
	}
}

func fastTimings() timings {
	return timings{
		pageSettle:       time.Millisecond,
		afterType:        time.Millisecond,
		afterClick:       time.Millisecond,
		codeInputWait:    10 * time.Millisecond,
		codeDeliveryWait: time.Millisecond,
		codePollInterval: time.Millisecond,
		codePollAttempts: 3,
		keystrokeDelay:   0,
		beforeVerify:     time.Millisecond,
		redirectBudget:   30 * time.Millisecond,
		redirectStep:     time.Millisecond,
		tokenSettle:      time.Millisecond,
	}
}

// fakePage scripts the URL transitions of the login flow: submitting the
// code moves to afterVerifyURL, submitting the onboarding form moves to
// afterOnboardingURL.
type fakePage struct {
	mu                 sync.Mutex
	url                string
	afterVerifyURL     string
	afterOnboardingURL string
	cookies            map[string]string
	inputs             map[string][]string
	clicks             []string
	cleared            []string
	closed             bool
}

func newFakePage() *fakePage {
	return &fakePage{
		url:     "https://site.example/login",
		cookies: map[string]string{},
		inputs:  map[string][]string{},
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }

func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	switch selector {
	case "#verify":
		p.url = p.afterVerifyURL
	case "#onboard":
		p.url = p.afterOnboardingURL
	}
	return nil
}

func (p *fakePage) Input(ctx context.Context, selector, text string, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs[selector] = append(p.inputs[selector], text)
	return nil
}

func (p *fakePage) ClearInput(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, selector)
	return nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Cookie(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cookies[name], nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeLauncher struct {
	page *fakePage
	err  error
	opts interfaces.BrowserLaunchOptions
}

func (l *fakeLauncher) Launch(ctx context.Context, opts interfaces.BrowserLaunchOptions) (interfaces.BrowserPage, error) {
	l.opts = opts
	if l.err != nil {
		return nil, l.err
	}
	return l.page, nil
}

// fakeMailService serves a code after a configurable number of failed polls.
type fakeMailService struct {
	code        string
	failPolls   int
	pollsSeen   int
	subjectSeen string
}

func (m *fakeMailService) Login(ctx context.Context) (string, error) { return "", nil }
func (m *fakeMailService) ListAccounts(ctx context.Context, token string) (*models.AccountList, error) {
	return nil, nil
}
func (m *fakeMailService) CreateAccount(ctx context.Context, token string) (*models.MailAccount, error) {
	return nil, nil
}
func (m *fakeMailService) BatchCreateAccounts(ctx context.Context, token string, count int) (*models.BatchCreateResult, error) {
	return nil, nil
}
func (m *fakeMailService) DeleteAccount(ctx context.Context, token string, accountID int64) error {
	return nil
}
func (m *fakeMailService) ListEmails(ctx context.Context, token string, accountID int64, size int) ([]models.EmailSummary, error) {
	return nil, nil
}
func (m *fakeMailService) GetEmailDetail(ctx context.Context, token string, accountID, emailID int64) (*models.EmailDetail, error) {
	return nil, nil
}
func (m *fakeMailService) GetLatestVerificationCode(ctx context.Context, token string, accountID int64) (*models.VerificationCode, error) {
	return nil, nil
}
func (m *fakeMailService) FindCodeBySubject(ctx context.Context, token string, accountID int64, subject string) (string, error) {
	m.pollsSeen++
	m.subjectSeen = subject
	if m.pollsSeen <= m.failPolls {
		return "", er.ErrNoCodeEmail
	}
	return m.code, nil
}

type fakeProxyService struct {
	cfg *models.ProxyConfig
}

func (p *fakeProxyService) Resolve(ctx context.Context) *models.ProxyConfig {
	if p.cfg != nil {
		return p.cfg
	}
	return &models.ProxyConfig{Enabled: false, Type: models.ProxyHTTP, URL: "127.0.0.1", Port: 8080}
}
func (p *fakeProxyService) Probe(ctx context.Context, cfg *models.ProxyConfig) bool { return true }
func (p *fakeProxyService) Save(ctx context.Context, cfg *models.ProxyConfig) error { return nil }

func newTestService(t *testing.T, page *fakePage, mail *fakeMailService) (*sessionService, *fakeLauncher) {
	t.Helper()
	launcher := &fakeLauncher{page: page}
	svc := NewSessionService(getLogger(), testSiteConfig(t), launcher, mail, &fakeProxyService{}).(*sessionService)
	svc.timings = fastTimings()
	return svc, launcher
}

func TestCreateSessionDirectRedirect(t *testing.T) {
	page := newFakePage()
	page.afterVerifyURL = "https://site.example/cid/team-9/home?csesidx=idx7"
	page.cookies[secureSessionCookie] = "ses-value"
	page.cookies[hostSessionCookie] = "oses-value"

	mail := &fakeMailService{code: "KX92P1"}
	svc, _ := newTestService(t, page, mail)

	result, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	require.NoError(t, err)

	assert.Equal(t, models.SessionTokens{
		Csesidx:    "idx7",
		HostCOses:  "oses-value",
		SecureCSes: "ses-value",
		TeamID:     "team-9",
	}, result.Tokens)
	assert.False(t, result.RedirectTimedOutOnOnboarding)

	// the account email went into the email field, the code into the code field
	assert.Equal(t, []string{"child@example.com"}, page.inputs["#email"])
	assert.Equal(t, []string{"KX92P1"}, page.inputs["#code"])
	assert.Contains(t, page.cleared, "#code")
	// the onboarding form was never touched
	assert.Empty(t, page.inputs["#displayName"])
	assert.Equal(t, "您的 Gemini 验证码", mail.subjectSeen)
	assert.True(t, page.closed)
}

func TestCreateSessionOnboardingBranch(t *testing.T) {
	page := newFakePage()
	page.afterVerifyURL = "https://site.example/welcome/create"
	page.afterOnboardingURL = "https://site.example/cid/team-3/home?csesidx=idx1"
	page.cookies[secureSessionCookie] = "ses"
	page.cookies[hostSessionCookie] = "oses"

	mail := &fakeMailService{code: "AB12CD"}
	svc, _ := newTestService(t, page, mail)

	result, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	require.NoError(t, err)

	assert.Equal(t, "team-3", result.Tokens.TeamID)
	assert.False(t, result.RedirectTimedOutOnOnboarding)
	// the display name field gets the account email
	assert.Equal(t, []string{"child@example.com"}, page.inputs["#displayName"])
	assert.Contains(t, page.clicks, "#onboard")
	assert.True(t, page.closed)
}

func TestCreateSessionOnboardingUnderTeamPath(t *testing.T) {
	// the onboarding page can already carry the team path; the create marker
	// must win the branch decision and extraction still succeeds
	page := newFakePage()
	page.afterVerifyURL = "https://site.example/cid/team-5/welcome/create?csesidx=idx9"
	page.afterOnboardingURL = "https://site.example/cid/team-5/welcome/create?csesidx=idx9"
	page.cookies[secureSessionCookie] = "ses"
	page.cookies[hostSessionCookie] = "oses"

	mail := &fakeMailService{code: "AB12CD"}
	svc, _ := newTestService(t, page, mail)

	result, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	require.NoError(t, err)

	assert.Equal(t, "team-5", result.Tokens.TeamID)
	assert.Equal(t, []string{"child@example.com"}, page.inputs["#displayName"])
	assert.True(t, page.closed)
}

func TestCreateSessionOnboardingRedirectTimeout(t *testing.T) {
	page := newFakePage()
	page.afterVerifyURL = "https://site.example/welcome/create?csesidx=idx2"
	page.afterOnboardingURL = "https://site.example/welcome/create?csesidx=idx2"
	page.cookies[secureSessionCookie] = "ses"
	page.cookies[hostSessionCookie] = "oses"

	mail := &fakeMailService{code: "AB12CD"}
	svc, _ := newTestService(t, page, mail)

	// extraction proceeds despite the timeout but cannot find a team id
	_, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	require.Error(t, err)
	assert.True(t, er.IsIncompleteToken(err))
	assert.Contains(t, err.Error(), "team_id")
	assert.True(t, page.closed)
}

func TestCreateSessionCodePollingExhausted(t *testing.T) {
	page := newFakePage()
	mail := &fakeMailService{code: "AB12CD", failPolls: 99}
	svc, _ := newTestService(t, page, mail)

	_, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	assert.ErrorIs(t, err, er.ErrVerificationTimeout)
	assert.Equal(t, 3, mail.pollsSeen)
	assert.True(t, page.closed)
}

func TestCreateSessionCodeFoundOnLaterPoll(t *testing.T) {
	page := newFakePage()
	page.afterVerifyURL = "https://site.example/cid/team-1/home?csesidx=idx1"
	page.cookies[secureSessionCookie] = "ses"
	page.cookies[hostSessionCookie] = "oses"

	mail := &fakeMailService{code: "ZZ99XX", failPolls: 2}
	svc, _ := newTestService(t, page, mail)

	result, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	require.NoError(t, err)
	assert.Equal(t, 3, mail.pollsSeen)
	assert.Equal(t, []string{"ZZ99XX"}, page.inputs["#code"])
	assert.Equal(t, "team-1", result.Tokens.TeamID)
}

func TestCreateSessionIncompleteTokens(t *testing.T) {
	page := newFakePage()
	page.afterVerifyURL = "https://site.example/cid/team-9/home?csesidx=idx7"
	// only one of the two cookies is present
	page.cookies[hostSessionCookie] = "oses-value"

	mail := &fakeMailService{code: "KX92P1"}
	svc, _ := newTestService(t, page, mail)

	_, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	require.Error(t, err)
	assert.True(t, er.IsIncompleteToken(err))
	assert.Contains(t, err.Error(), secureSessionCookie)
	assert.NotContains(t, err.Error(), hostSessionCookie)
	assert.True(t, page.closed)
}

func TestCreateSessionLaunchFailurePropagates(t *testing.T) {
	mail := &fakeMailService{code: "KX92P1"}
	launcher := &fakeLauncher{err: assert.AnError}
	svc := NewSessionService(getLogger(), testSiteConfig(t), launcher, mail, &fakeProxyService{}).(*sessionService)
	svc.timings = fastTimings()

	_, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	assert.ErrorIs(t, err, assert.AnError)
	// no inbox polling happened
	assert.Zero(t, mail.pollsSeen)
}

func TestLaunchReceivesProxyConfig(t *testing.T) {
	page := newFakePage()
	page.afterVerifyURL = "https://site.example/cid/t/home?csesidx=i"
	page.cookies[secureSessionCookie] = "a"
	page.cookies[hostSessionCookie] = "b"

	proxyCfg := &models.ProxyConfig{Enabled: true, Type: models.ProxySocks5, URL: "10.0.0.1", Port: 1080}
	launcher := &fakeLauncher{page: page}
	svc := NewSessionService(getLogger(), testSiteConfig(t), launcher, &fakeMailService{code: "C0DE12"}, &fakeProxyService{cfg: proxyCfg}).(*sessionService)
	svc.timings = fastTimings()

	_, err := svc.CreateSession(context.Background(), "child@example.com", 7, "tok")
	require.NoError(t, err)
	assert.Equal(t, proxyCfg, launcher.opts.Proxy)
	assert.NotEmpty(t, launcher.opts.ProfileDir)
}

func TestParseSessionURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		csesidx string
		teamID  string
	}{
		{"full session url", "https://site.example/cid/team-42/home?csesidx=3", "3", "team-42"},
		{"team id at path end", "https://site.example/cid/team-42?csesidx=0", "0", "team-42"},
		{"missing cid", "https://site.example/welcome?csesidx=3", "3", ""},
		{"missing csesidx", "https://site.example/cid/team-42/home", "", "team-42"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csesidx, teamID := parseSessionURL(tt.url)
			assert.Equal(t, tt.csesidx, csesidx)
			assert.Equal(t, tt.teamID, teamID)
		})
	}
}
