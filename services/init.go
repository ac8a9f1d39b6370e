package services

import (
	"github.com/xiaomo-123/gemini-api-service/config"
	"github.com/xiaomo-123/gemini-api-service/interfaces"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/repository"
	"github.com/xiaomo-123/gemini-api-service/services/browser"
	"github.com/xiaomo-123/gemini-api-service/services/mailapi"
	"github.com/xiaomo-123/gemini-api-service/services/pool"
	"github.com/xiaomo-123/gemini-api-service/services/proxy"
	"github.com/xiaomo-123/gemini-api-service/services/refresh"
)

type Services struct {
	MailService    interfaces.MailService
	ProxyService   interfaces.ProxyService
	SessionService interfaces.SessionService
	RefreshService interfaces.RefreshService
	PoolService    interfaces.PoolService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	mailService := mailapi.NewMailService(log, repos.MailStore)
	proxyService := proxy.NewProxyService(log, repos.ProxyStore)

	browserLauncher := browser.NewRodLauncher(log, cfg.GeminiSiteConfig.BrowserBin)
	sessionService := browser.NewSessionService(log, cfg.GeminiSiteConfig, browserLauncher, mailService, proxyService)

	services := Services{
		MailService:    mailService,
		ProxyService:   proxyService,
		SessionService: sessionService,
		RefreshService: refresh.NewRefreshService(log, repos.MailStore, repos.GeminiStore, sessionService),
		PoolService:    pool.NewPoolService(log, repos.GeminiStore),
	}

	return &services, nil
}
