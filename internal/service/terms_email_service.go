package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/yourusername/terms-api/internal/domain/entity"
)

// TermsEmailService sends a copy of a terms document to an email address.
type TermsEmailService interface {
	SendTermsCopy(ctx context.Context, toEmail string, terms *entity.TermsAndConditions, idempotencyKey string) error
}

// NoopTermsEmailService is used when email sending is disabled.
type NoopTermsEmailService struct{}

func (s *NoopTermsEmailService) SendTermsCopy(ctx context.Context, toEmail string, terms *entity.TermsAndConditions, idempotencyKey string) error {
	log.Printf("[TermsEmailService] noop send terms copy to=%s terms=%s", toEmail, terms.Label())
	return nil
}

// ResendTermsEmailService sends emails via Resend REST API.
type ResendTermsEmailService struct {
	from   string
	client *resend.Client
}

func NewResendTermsEmailService(apiKey, from string) (*ResendTermsEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendTermsEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendTermsEmailService) SendTermsCopy(ctx context.Context, toEmail string, terms *entity.TermsAndConditions, idempotencyKey string) error {
	if toEmail == "" || terms == nil {
		return fmt.Errorf("toEmail and terms are required")
	}

	subject := fmt.Sprintf("%s (version %.2f)", terms.Name, terms.VersionNumber)

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: subject,
		Text:    fmt.Sprintf("%s\nVersion %.2f\n\n%s", terms.Name, terms.VersionNumber, terms.Text),
		Html: fmt.Sprintf("<h1>%s</h1><p>Version %.2f</p><div>%s</div>",
			html.EscapeString(terms.Name), terms.VersionNumber, html.EscapeString(terms.Text)),
	}

	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
