package proxy

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	"github.com/xiaomo-123/gemini-api-service/internal/logger"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
)

// probeEndpoint answers 204 from anywhere, which is all the connectivity
// check needs.
const probeEndpoint = "https://www.gstatic.com/generate_204"

const probeTimeout = 10 * time.Second

type proxyService struct {
	log        logger.Logger
	proxyStore interfaces.ProxyStore
	endpoint   string
}

func NewProxyService(log logger.Logger, proxyStore interfaces.ProxyStore) interfaces.ProxyService {
	return &proxyService{
		log:        log,
		proxyStore: proxyStore,
		endpoint:   probeEndpoint,
	}
}

func defaultConfig() *models.ProxyConfig {
	return &models.ProxyConfig{
		Enabled: false,
		Type:    models.ProxyHTTP,
		URL:     "127.0.0.1",
		Port:    8080,
	}
}

// Resolve returns the persisted proxy configuration, falling back to the
// disabled default on a missing or unreadable document. It never fails.
func (s *proxyService) Resolve(ctx context.Context) *models.ProxyConfig {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProxyService.Resolve")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	cfg, err := s.proxyStore.Load(ctx)
	if err != nil {
		s.log.Warnf("proxy config unavailable, using default: %v", err)
		return defaultConfig()
	}
	if cfg.URL == "" {
		return defaultConfig()
	}
	if cfg.Type != models.ProxyHTTP && cfg.Type != models.ProxySocks5 {
		s.log.Warnf("unknown proxy type %q, using default", cfg.Type)
		return defaultConfig()
	}
	return cfg
}

// Probe issues one request through cfg to a fixed endpoint. Any response
// below 400 counts as a working proxy; transport errors report false.
func (s *proxyService) Probe(ctx context.Context, cfg *models.ProxyConfig) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProxyService.Probe")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.String("proxy", cfg.Server()))

	proxyURL := &url.URL{
		Scheme: string(cfg.Type),
		Host:   cfg.Address(),
	}
	if cfg.Username != "" {
		proxyURL.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	client := &http.Client{
		Timeout: probeTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
		// a redirect already proves the proxy forwards traffic
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		tracing.TraceErr(span, err)
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		s.log.Warnf("proxy probe failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	span.LogFields(tracingLog.Int("status", resp.StatusCode))
	return resp.StatusCode < 400
}

func (s *proxyService) Save(ctx context.Context, cfg *models.ProxyConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProxyService.Save")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.proxyStore.Save(ctx, cfg)
}
