// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/photobooth/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	err := i18n.Init()
	require.NoError(t, err)
}

func TestT(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "Photobooth", i18n.T(ctx, "app_name"))
	assert.Equal(t, "Your Photobooth verification code", i18n.T(ctx, "email_code_subject"))
}

func TestT_Vietnamese(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.Vietnamese)

	assert.Equal(t, "Mã xác thực Photobooth của bạn", i18n.T(ctx, "email_code_subject"))
}

func TestT_UnknownKey(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	require.NoError(t, i18n.Init())

	result := i18n.T(context.Background(), "register_success")
	assert.Contains(t, result, "Registration successful")
}

func TestT_Data(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	body := i18n.T(ctx, "email_code_body", map[string]any{"Code": "123456", "Minutes": 15})
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "15 minutes")

	body = i18n.T(ctx, "email_link_body", map[string]any{"VerifyURL": "https://app.example.com/verify-email?token=abc", "Hours": 24})
	assert.Contains(t, body, "https://app.example.com/verify-email?token=abc")
}

func TestT_EveryCatalogHasTheDefaultNames(t *testing.T) {
	require.NoError(t, i18n.Init())

	for _, lang := range i18n.Supported {
		ctx := i18n.WithLocale(context.Background(), lang)
		for _, id := range []string{"framer_default_name", "contribution_default_name"} {
			assert.NotEqual(t, id, i18n.T(ctx, id), "%s in %s", id, lang)
		}
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		expected       language.Tag
		acceptLanguage string
	}{
		{language.English, "en"},
		{language.English, "en-US"},
		{language.Vietnamese, "vi"},
		{language.Vietnamese, "vi-VN"},
		{language.English, "fr"},
		{language.English, ""},
		{language.Vietnamese, "vi, en;q=0.9"},
		{language.English, "en, vi;q=0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			tag := i18n.MatchLanguage(tt.acceptLanguage)
			assert.Equal(t, tt.expected.String()[:2], tag.String()[:2])
		})
	}
}

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.Vietnamese)
	assert.Equal(t, language.Vietnamese, i18n.Locale(ctx))
	assert.Equal(t, language.English, i18n.Locale(context.Background()))
}
