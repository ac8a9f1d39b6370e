package config

import (
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
)

type AppConfig struct {
	APIPort string `env:"PORT" envDefault:"12500"`
	APIKey  string `env:"API_KEY,required"`
	DataDir string `env:"DATA_DIR" envDefault:"./data"`
	Logger  *logger.Config
	Tracing *tracing.JaegerConfig
}

// GeminiSiteConfig points the browser session driver at the target
// authentication site. Selectors are stable element locators on the login and
// onboarding pages.
type GeminiSiteConfig struct {
	LoginURL             string `env:"GEMINI_LOGIN_URL" envDefault:"https://business.gemini.google/"`
	VerificationSubject  string `env:"GEMINI_VERIFICATION_SUBJECT" envDefault:"您的 Gemini 验证码"`
	EmailSelector        string `env:"GEMINI_EMAIL_SELECTOR" envDefault:"input[type='email']"`
	ContinueSelector     string `env:"GEMINI_CONTINUE_SELECTOR" envDefault:"button[type='submit']"`
	CodeSelector         string `env:"GEMINI_CODE_SELECTOR" envDefault:"input[name='totpPin']"`
	VerifySelector       string `env:"GEMINI_VERIFY_SELECTOR" envDefault:"button[type='submit']"`
	DisplayNameSelector  string `env:"GEMINI_DISPLAY_NAME_SELECTOR" envDefault:"input[name='displayName']"`
	OnboardingSelector   string `env:"GEMINI_ONBOARDING_SUBMIT_SELECTOR" envDefault:"button[data-test-id='onboarding-submit']"`
	BrowserBin           string `env:"BROWSER_BIN"`
	ProfileRoot          string `env:"BROWSER_PROFILE_ROOT" envDefault:"/tmp/gemini-profiles"`
	UserAgent            string `env:"BROWSER_USER_AGENT"`
}

type CronConfig struct {
	// Heartbeat check, every minute
	HeartbeatSchedule string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Full token refresh, daily at 03:00
	TokenRefreshSchedule string `env:"CRON_SCHEDULE_TOKEN_REFRESH" envDefault:"0 0 3 * * *"`
	// Pool invalid-entry cleanup, hourly at minute 30
	PoolCleanSchedule string `env:"CRON_SCHEDULE_POOL_CLEAN" envDefault:"0 30 * * * *"`
}

type Config struct {
	AppConfig        *AppConfig
	GeminiSiteConfig *GeminiSiteConfig
	CronConfig       *CronConfig
}
