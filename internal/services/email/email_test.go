// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/config"
	"codeberg.org/oliverandrich/photobooth/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Photobooth",
		TLS:      true,
	}
}

func TestNewService(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), 15*time.Minute, 24*time.Hour)

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := NewService(cfg, time.Minute, time.Hour)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := NewService(cfg, time.Minute, time.Hour)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestNewMessage(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), time.Minute, time.Hour)
	require.NoError(t, err)

	msg, err := svc.newMessage("alice@example.com", "vi", "Subject", "Body")

	require.NoError(t, err)
	assert.Equal(t, []string{"<alice@example.com>"}, msg.GetToString())
	assert.Equal(t, []string{"Subject"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Equal(t, []string{"vi"}, msg.GetGenHeader(mail.HeaderContentLang))
}

func TestNewMessage_InvalidRecipient(t *testing.T) {
	svc, err := NewService(validSMTPConfig(), time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = svc.newMessage("not an address", "en", "Subject", "Body")

	assert.ErrorContains(t, err, "setting to address")
}

func TestClientOptions(t *testing.T) {
	cfg := validSMTPConfig()
	svc, err := NewService(cfg, time.Minute, time.Hour)
	require.NoError(t, err)
	withAuth := len(svc.clientOptions())

	cfg.Username = ""
	withoutAuth := len(svc.clientOptions())
	assert.Equal(t, withAuth-3, withoutAuth)

	cfg.Port = 465
	assert.Len(t, svc.clientOptions(), withoutAuth+1)

	cfg.TLS = false
	assert.Len(t, svc.clientOptions(), 2)
}

func TestSend_UnreachableServer(t *testing.T) {
	require.NoError(t, i18n.Init())
	cfg := validSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.TLS = false
	svc, err := NewService(cfg, time.Minute, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = svc.SendVerificationCode(ctx, "alice@example.com", "123456")

	assert.ErrorContains(t, err, "sending email")
}

func TestLogNotifier(t *testing.T) {
	require.NoError(t, i18n.Init())
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, n.SendVerificationCode(ctx, "alice@example.com", "123456"))
	require.NoError(t, n.SendVerificationLink(ctx, "alice@example.com", "https://app.example.com/verify-email?token=abc"))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "to=alice@example.com")
	assert.Contains(t, out, "code=123456")
	assert.Contains(t, out, "verify-email?token=abc")
}

func TestNewLogNotifier_DefaultLogger(t *testing.T) {
	assert.NotNil(t, NewLogNotifier(nil).logger)
}
