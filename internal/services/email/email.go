// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers verification notifications.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/config"
	"codeberg.org/oliverandrich/photobooth/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Notifier dispatches verification secrets to the owner of an email address.
type Notifier interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendVerificationLink(ctx context.Context, to, link string) error
}

// Service sends notifications via SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	codeTTL time.Duration
	linkTTL time.Duration
}

var _ Notifier = (*Service)(nil)

// NewService creates a new email service. codeTTL and linkTTL are quoted in
// the message bodies.
func NewService(cfg *config.SMTPConfig, codeTTL, linkTTL time.Duration) (*Service, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		codeTTL: codeTTL,
		linkTTL: linkTTL,
	}, nil
}

// SendVerificationCode sends the one-time code.
func (s *Service) SendVerificationCode(ctx context.Context, to, code string) error {
	subject := i18n.T(ctx, "email_code_subject")
	body := i18n.T(ctx, "email_code_body", map[string]any{
		"Code":    code,
		"Minutes": int(s.codeTTL.Minutes()),
	})
	return s.send(ctx, to, i18n.Locale(ctx).String(), subject, body)
}

// SendVerificationLink sends the verification link.
func (s *Service) SendVerificationLink(ctx context.Context, to, link string) error {
	subject := i18n.T(ctx, "email_link_subject")
	body := i18n.T(ctx, "email_link_body", map[string]any{
		"VerifyURL": link,
		"Hours":     int(s.linkTTL.Hours()),
	})
	return s.send(ctx, to, i18n.Locale(ctx).String(), subject, body)
}

func (s *Service) send(ctx context.Context, to, lang, subject, body string) error {
	msg, err := s.newMessage(to, lang, subject, body)
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

func (s *Service) newMessage(to, lang, subject, body string) (*mail.Msg, error) {
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

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetGenHeader(mail.HeaderContentLang, lang)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
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

// LogNotifier writes notifications to the log instead of sending them.
// It is used when no SMTP server is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendVerificationCode(ctx context.Context, to, code string) error {
	n.logger.WarnContext(ctx, "smtp not configured, verification code not sent",
		"to", to, "subject", i18n.T(ctx, "email_code_subject"), "code", code)
	return nil
}

func (n *LogNotifier) SendVerificationLink(ctx context.Context, to, link string) error {
	n.logger.WarnContext(ctx, "smtp not configured, verification link not sent",
		"to", to, "subject", i18n.T(ctx, "email_link_subject"), "link", link)
	return nil
}
