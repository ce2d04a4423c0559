package notify

import (
	"context"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/pkg/config"
)

// Mailer sends workflow notifications. Delivery runs in a goroutine and is
// best effort; failures are logged, never returned to the caller.
type Mailer struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *zap.Logger
}

// NewMailer builds a SendGrid-backed mailer, or a console mailer when no API
// key is configured.
func NewMailer(cfg config.NotificationsConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailer{
		from:   mail.NewEmail(cfg.FromName, cfg.FromAddress),
		logger: logger,
	}
	if cfg.APIKey != "" {
		m.client = sendgrid.NewSendClient(cfg.APIKey)
	}
	return m
}

// Send dispatches one plain-text message asynchronously.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) {
	if to == "" {
		return
	}
	if m.client == nil {
		m.logger.Info("mail (console)",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.String("body", body))
		return
	}
	go func() {
		message := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), body, body)
		resp, err := m.client.Send(message)
		if err != nil {
			m.logger.Warn("mail delivery failed", zap.String("to", to), zap.Error(err))
			return
		}
		if resp.StatusCode >= 400 {
			m.logger.Warn("mail rejected",
				zap.String("to", to),
				zap.Int("status", resp.StatusCode),
				zap.String("body", resp.Body))
		}
	}()
}
