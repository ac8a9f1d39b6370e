package repository

import (
	"context"
	"os"

	"github.com/opentracing/opentracing-go"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
)

type proxyStore struct {
	path string
}

func NewProxyStore(path string) interfaces.ProxyStore {
	return &proxyStore{path: path}
}

func (s *proxyStore) Load(ctx context.Context) (*models.ProxyConfig, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "ProxyStore.Load")
	defer span.Finish()
	tracing.TagComponentStore(span)

	var cfg models.ProxyConfig
	err := readDocument(s.path, &cfg)
	if err != nil {
		if !os.IsNotExist(err) {
			tracing.TraceErr(span, err)
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *proxyStore) Save(ctx context.Context, cfg *models.ProxyConfig) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "ProxyStore.Save")
	defer span.Finish()
	tracing.TagComponentStore(span)

	if err := writeDocument(s.path, cfg); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
