package repository

import (
	"context"
	"os"

	"github.com/opentracing/opentracing-go"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
)

type geminiStore struct {
	path string
}

func NewGeminiStore(path string) interfaces.GeminiStore {
	return &geminiStore{path: path}
}

func (s *geminiStore) Load(ctx context.Context) (*models.GeminiConfig, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "GeminiStore.Load")
	defer span.Finish()
	tracing.TagComponentStore(span)

	var cfg models.GeminiConfig
	err := readDocument(s.path, &cfg)
	if os.IsNotExist(err) {
		return &models.GeminiConfig{}, nil
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &cfg, nil
}

func (s *geminiStore) Save(ctx context.Context, cfg *models.GeminiConfig) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "GeminiStore.Save")
	defer span.Finish()
	tracing.TagComponentStore(span)

	if err := writeDocument(s.path, cfg); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
