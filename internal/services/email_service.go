// file: internal/services/email_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/http"
	texttemplate "text/template"

	"bridgeus/internal/config"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const passwordResetSubject = "【BridgeUs】パスワード再設定のご案内"

var (
	passwordResetText = texttemplate.Must(texttemplate.New("reset_text").Parse(
		`BridgeUsをご利用いただきありがとうございます。

以下のリンクからパスワードを再設定してください。
{{.ResetURL}}

このメールに心当たりがない場合は破棄してください。
`))

	passwordResetHTML = htmltemplate.Must(htmltemplate.New("reset_html").Parse(
		`<p>BridgeUsをご利用いただきありがとうございます。</p>
<p>以下のリンクからパスワードを再設定してください。</p>
<p><a href="{{.ResetURL}}">パスワードを再設定する</a></p>
<p>このメールに心当たりがない場合は破棄してください。</p>
`))
)

type resetEmailData struct {
	ResetURL string
}

func renderPasswordReset(resetURL string) (text, html string, err error) {
	data := resetEmailData{ResetURL: resetURL}
	var tb, hb bytes.Buffer
	if err := passwordResetText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("failed to render text body: %w", err)
	}
	if err := passwordResetHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("failed to render html body: %w", err)
	}
	return tb.String(), hb.String(), nil
}

// NewEmailServiceFromConfig picks SendGrid when an API key is configured
// and falls back to logging otherwise
func NewEmailServiceFromConfig(cfg config.EmailConfig, logger *zap.Logger) EmailService {
	if cfg.Provider == "sendgrid" && cfg.SendGridAPIKey != "" {
		return NewSendGridEmailService(sendgrid.NewSendClient(cfg.SendGridAPIKey), cfg.FromAddress, cfg.FromName, logger)
	}
	return NewEmailService(logger)
}

// ===============================
// LOG SENDER
// ===============================

// emailService logs outgoing mail instead of sending it
type emailService struct {
	logger *zap.Logger
}

// NewEmailService creates an EmailService that only logs
func NewEmailService(logger *zap.Logger) EmailService {
	return &emailService{
		logger: logger,
	}
}

func (s *emailService) SendPasswordResetEmail(ctx context.Context, to, resetURL string) error {
	if _, _, err := renderPasswordReset(resetURL); err != nil {
		return err
	}
	s.logger.Info("Password reset email (not sent)",
		zap.String("to", to),
		zap.String("reset_url", resetURL),
	)
	return nil
}

// ===============================
// SENDGRID SENDER
// ===============================

// MailClient is the part of the SendGrid client used to deliver mail
type MailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridEmailService struct {
	client MailClient
	from   *mail.Email
	logger *zap.Logger
}

// NewSendGridEmailService delivers mail through SendGrid
func NewSendGridEmailService(client MailClient, fromAddress, fromName string, logger *zap.Logger) EmailService {
	return &sendGridEmailService{
		client: client,
		from:   mail.NewEmail(fromName, fromAddress),
		logger: logger,
	}
}

// SendPasswordResetEmail sends the reset link. SendGrid answers 202 on success.
func (s *sendGridEmailService) SendPasswordResetEmail(ctx context.Context, to, resetURL string) error {
	text, html, err := renderPasswordReset(resetURL)
	if err != nil {
		return err
	}

	message := mail.NewSingleEmail(s.from, passwordResetSubject, mail.NewEmail("", to), text, html)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("Failed to send password reset email",
			zap.String("to", to),
			zap.Error(err),
		)
		return NewNetworkError("failed to send email", err)
	}
	if response.StatusCode != http.StatusAccepted {
		s.logger.Error("Unexpected SendGrid response",
			zap.Int("status_code", response.StatusCode),
			zap.String("body", response.Body),
		)
		return NewInternalError(fmt.Sprintf("unexpected SendGrid status code: %d", response.StatusCode), nil)
	}

	s.logger.Info("Password reset email sent", zap.String("to", to))
	return nil
}
