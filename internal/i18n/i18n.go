// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package i18n translates user-facing strings. Catalogs are embedded TOML
// files named active.<lang>.toml; every file present is loaded.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// Supported lists the languages with a catalog, default first.
var Supported = []language.Tag{language.English, language.Vietnamese}

var (
	bundle  *i18n.Bundle
	matcher = language.NewMatcher(Supported)
)

type localizerKey struct{}

type localized struct {
	tag       language.Tag
	localizer *i18n.Localizer
}

// Init loads the embedded catalogs.
func Init() error {
	b := i18n.NewBundle(Supported[0])
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(translationFS, "translations/active.*.toml")
	if err != nil {
		return err
	}
	for _, file := range files {
		if _, err := b.LoadMessageFileFS(translationFS, file); err != nil {
			return fmt.Errorf("loading %s: %w", file, err)
		}
	}

	bundle = b
	return nil
}

// WithLocale stores a localizer for lang in ctx.
func WithLocale(ctx context.Context, lang language.Tag) context.Context {
	return context.WithValue(ctx, localizerKey{}, localized{tag: lang, localizer: newLocalizer(lang)})
}

// Locale returns the language stored in ctx, or the default language.
func Locale(ctx context.Context) language.Tag {
	if l, ok := ctx.Value(localizerKey{}).(localized); ok {
		return l.tag
	}
	return Supported[0]
}

// T translates messageID for the language in ctx. An optional data map
// fills template fields. Unknown IDs come back unchanged.
func T(ctx context.Context, messageID string, data ...map[string]any) string {
	localizer := localizerFrom(ctx)
	if localizer == nil {
		return messageID
	}

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(data) > 0 {
		cfg.TemplateData = data[0]
	}
	msg, err := localizer.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}

// MatchLanguage picks the best supported language for an Accept-Language
// header value.
func MatchLanguage(acceptLanguage string) language.Tag {
	_, index := language.MatchStrings(matcher, acceptLanguage)
	return Supported[index]
}

func localizerFrom(ctx context.Context) *i18n.Localizer {
	if l, ok := ctx.Value(localizerKey{}).(localized); ok && l.localizer != nil {
		return l.localizer
	}
	return newLocalizer(Supported[0])
}

func newLocalizer(lang language.Tag) *i18n.Localizer {
	if bundle == nil {
		return nil
	}
	return i18n.NewLocalizer(bundle, lang.String())
}
