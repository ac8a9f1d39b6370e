package mailapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	er "github.com/xiaomo-123/gemini-api-service/internal/errors"
	"github.com/xiaomo-123/gemini-api-service/internal/models"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
	"github.com/xiaomo-123/gemini-api-service/internal/verification"
)

// codeScanPageSize is how many recent emails a single code scan inspects.
// There is no further pagination: a code older than this is treated as absent.
const codeScanPageSize = 10

func (s *mailService) ListEmails(ctx context.Context, token string, accountID int64, size int) ([]models.EmailSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.ListEmails")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatInt(accountID, 10))

	query := url.Values{}
	query.Set("accountId", strconv.FormatInt(accountID, 10))
	query.Set("size", strconv.Itoa(size))

	data, err := s.call(ctx, http.MethodGet, "/api/email/list", token, query, nil)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var result struct {
		Emails []models.EmailSummary `json:"emails"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to parse email list")
	}
	span.LogFields(tracingLog.Int("emails", len(result.Emails)))
	return result.Emails, nil
}

func (s *mailService) GetEmailDetail(ctx context.Context, token string, accountID, emailID int64) (*models.EmailDetail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.GetEmailDetail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatInt(emailID, 10))

	query := url.Values{}
	query.Set("accountId", strconv.FormatInt(accountID, 10))
	query.Set("id", strconv.FormatInt(emailID, 10))

	data, err := s.call(ctx, http.MethodGet, "/api/email/detail", token, query, nil)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var detail models.EmailDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to parse email detail")
	}
	return &detail, nil
}

func (s *mailService) GetLatestVerificationCode(ctx context.Context, token string, accountID int64) (*models.VerificationCode, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.GetLatestVerificationCode")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatInt(accountID, 10))

	emails, err := s.ListEmails(ctx, token, accountID, codeScanPageSize)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	for _, email := range emails {
		text := email.Subject + "\n" + verification.HTMLToText(email.Content)
		code, ok := verification.ExtractProviderCode(text)
		if !ok {
			continue
		}
		return &models.VerificationCode{
			Code:    code,
			Time:    email.Time,
			Subject: email.Subject,
			From:    email.From,
		}, nil
	}

	err = errors.Wrapf(er.ErrNoCodeEmail, "no verification email among the %d most recent", len(emails))
	tracing.TraceErr(span, err)
	return nil, err
}

func (s *mailService) FindCodeBySubject(ctx context.Context, token string, accountID int64, subject string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailService.FindCodeBySubject")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, strconv.FormatInt(accountID, 10))
	span.LogFields(tracingLog.String("subject", subject))

	emails, err := s.ListEmails(ctx, token, accountID, codeScanPageSize)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	for _, email := range emails {
		if email.Subject != subject {
			continue
		}

		content := email.Content
		if content == "" {
			// list response omitted the body, fetch the single-email detail
			detail, err := s.GetEmailDetail(ctx, token, accountID, email.ID)
			if err != nil {
				tracing.TraceErr(span, err)
				return "", err
			}
			content = detail.Content
		}

		code, ok := verification.ExtractGeminiCode(verification.HTMLToText(content))
		if !ok {
			continue
		}
		return code, nil
	}

	return "", errors.Wrapf(er.ErrNoCodeEmail, "subject %q not found among the %d most recent", subject, len(emails))
}
