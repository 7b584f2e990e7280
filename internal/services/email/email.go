// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kaminskia1/excel-autograder/internal/config"
	"github.com/kaminskia1/excel-autograder/internal/i18n"
	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/wneessen/go-mail"
)

// SendTimeout bounds a single SMTP delivery.
const SendTimeout = 30 * time.Second

// Message is a rendered verification mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Composer renders verification mails.
type Composer struct {
	frontendURL string
}

// NewComposer creates a Composer that links to frontendURL.
func NewComposer(frontendURL string) *Composer {
	return &Composer{frontendURL: strings.TrimSuffix(frontendURL, "/")}
}

// VerifyURL returns the link a user opens to redeem token.
func (c *Composer) VerifyURL(token string) string {
	return fmt.Sprintf("%s/verify-email/%s", c.frontendURL, token)
}

// Compose renders the mail for token. Change tokens go to the pending
// address, verify tokens to the current one.
func (c *Composer) Compose(ctx context.Context, user *models.User, token *models.VerificationToken) (*Message, error) {
	data := map[string]any{
		"Username":   user.Username,
		"VerifyURL":  c.VerifyURL(token.Token),
		"ExpiryDays": expiryDays(token),
	}

	switch token.Type {
	case models.TokenTypeVerify:
		return &Message{
			To:      user.Email,
			Subject: i18n.T(ctx, "email_verification_subject"),
			Body:    i18n.TData(ctx, "email_verification_body", data),
		}, nil
	case models.TokenTypeChange:
		if !user.HasPendingEmail() {
			return nil, fmt.Errorf("user %d has no pending email", user.ID)
		}
		data["NewEmail"] = user.PendingEmailValue()
		return &Message{
			To:      user.PendingEmailValue(),
			Subject: i18n.T(ctx, "email_change_subject"),
			Body:    i18n.TData(ctx, "email_change_body", data),
		}, nil
	default:
		return nil, fmt.Errorf("unknown token type %q", token.Type)
	}
}

func expiryDays(token *models.VerificationToken) int {
	days := token.ExpiresAt.Sub(token.CreatedAt).Hours() / 24
	return int(math.Round(days))
}

// Service sends verification mails via SMTP.
type Service struct {
	*Composer
	cfg *config.SMTPConfig
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, frontendURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		Composer: NewComposer(frontendURL),
		cfg:      cfg,
	}, nil
}

// SendVerification renders and delivers the mail for token.
func (s *Service) SendVerification(ctx context.Context, user *models.User, token *models.VerificationToken) error {
	msg, err := s.Compose(ctx, user, token)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *Service) buildMsg(m *Message) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(SendTimeout),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// send delivers m via SMTP using go-mail.
func (s *Service) send(ctx context.Context, m *Message) error {
	msg, err := s.buildMsg(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// LogSender writes verification mails to the log instead of sending them.
// It is used when no SMTP host is configured.
type LogSender struct {
	*Composer
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(frontendURL string, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Composer: NewComposer(frontendURL), logger: logger}
}

// SendVerification logs the rendered mail.
func (s *LogSender) SendVerification(ctx context.Context, user *models.User, token *models.VerificationToken) error {
	msg, err := s.Compose(ctx, user, token)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "verification_mail",
		"to", msg.To,
		"subject", msg.Subject,
		"url", s.VerifyURL(token.Token),
	)
	return nil
}
