package repository

import (
	"context"
	"os"

	"github.com/opentracing/opentracing-go"

	"github.com/xiaomo-123/gemini-api-service/interfaces"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
)

type mailStore struct {
	path string
}

func NewMailStore(path string) interfaces.MailStore {
	return &mailStore{path: path}
}

func (s *mailStore) Load(ctx context.Context) (*models.MailCredentials, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "MailStore.Load")
	defer span.Finish()
	tracing.TagComponentStore(span)

	var creds models.MailCredentials
	err := readDocument(s.path, &creds)
	if os.IsNotExist(err) {
		return &models.MailCredentials{}, nil
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &creds, nil
}

func (s *mailStore) Save(ctx context.Context, creds *models.MailCredentials) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "MailStore.Save")
	defer span.Finish()
	tracing.TagComponentStore(span)

	if err := writeDocument(s.path, creds); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
