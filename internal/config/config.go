// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// ErrMissingSecret is returned when no usable session secret is configured.
var ErrMissingSecret = errors.New("session secret is required (the development secret only works on localhost)")

// devSecret signs session tokens on localhost when no secret is configured.
const devSecret = "photobooth-dev-secret-change-me"

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	Session      SessionConfig
	Verification VerificationConfig
	Share        ShareConfig
	SMTP         SMTPConfig
	OAuth        OAuthConfig
	Storage      StorageConfig
	RateLimit    RateLimitConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string // public URL of this service, used for OAuth callbacks
	FrontendURL string // public URL of the web client, used in emails and share links
	MaxBodySize int    // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Secret string
	TTL    time.Duration
	Issuer string
}

type VerificationConfig struct {
	CodeTTL time.Duration
	LinkTTL time.Duration
}

type ShareConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type OAuthConfig struct {
	Google   OAuthClientConfig
	Facebook OAuthClientConfig
	StateKey string // 32-byte hex string for signing the OAuth state cookie
}

type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the provider has client credentials.
func (c OAuthClientConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type StorageConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string // base URL objects are served from
}

// Enabled reports whether object storage is configured.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

type RateLimitConfig struct {
	AuthRPS   float64
	AuthBurst int
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			FrontendURL: cmd.String("frontend-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Session: SessionConfig{
			Secret: cmd.String("session-secret"),
			TTL:    cmd.Duration("session-ttl"),
			Issuer: cmd.String("session-issuer"),
		},
		Verification: VerificationConfig{
			CodeTTL: cmd.Duration("verification-code-ttl"),
			LinkTTL: cmd.Duration("verification-link-ttl"),
		},
		Share: ShareConfig{
			TTL:           cmd.Duration("share-ttl"),
			SweepInterval: cmd.Duration("share-sweep-interval"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		OAuth: OAuthConfig{
			Google: OAuthClientConfig{
				ClientID:     cmd.String("google-client-id"),
				ClientSecret: cmd.String("google-client-secret"),
			},
			Facebook: OAuthClientConfig{
				ClientID:     cmd.String("facebook-client-id"),
				ClientSecret: cmd.String("facebook-client-secret"),
			},
			StateKey: cmd.String("oauth-state-key"),
		},
		Storage: StorageConfig{
			Endpoint:  cmd.String("storage-endpoint"),
			Region:    cmd.String("storage-region"),
			Bucket:    cmd.String("storage-bucket"),
			AccessKey: cmd.String("storage-access-key"),
			SecretKey: cmd.String("storage-secret-key"),
			PublicURL: cmd.String("storage-public-url"),
		},
		RateLimit: RateLimitConfig{
			AuthRPS:   cmd.Float("ratelimit-auth-rps"),
			AuthBurst: int(cmd.Int("ratelimit-auth-burst")),
		},
	}

	applyDefaults(cfg)

	return cfg
}

// applyDefaults fills values derived from other settings.
func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg.Server.Host, cfg.Server.Port)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = cfg.Server.BaseURL
	}
	cfg.Server.FrontendURL = strings.TrimSuffix(cfg.Server.FrontendURL, "/")

	if cfg.Session.Secret == "" && IsLocalhost(cfg.Server.Host) {
		cfg.Session.Secret = devSecret
	}
}

// Validate checks settings that cannot be defaulted. The session secret must
// be set; the development secret filled in on localhost is refused elsewhere.
func (c *Config) Validate() error {
	if c.Session.Secret == "" || (c.Session.Secret == devSecret && !IsLocalhost(c.Server.Host)) {
		return ErrMissingSecret
	}
	if _, err := url.Parse(c.Server.FrontendURL); err != nil {
		return fmt.Errorf("invalid frontend url: %w", err)
	}
	return nil
}

func buildBaseURL(host string, port int) string {
	scheme := "https"
	if IsLocalhost(host) {
		scheme = "http"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func sources(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: sources("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: sources("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL of the API",
			Sources: sources("BASE_URL", "server.base_url"),
		},
		&cli.StringFlag{
			Name:    "frontend-url",
			Usage:   "Public URL of the web client (defaults to base URL)",
			Sources: sources("FRONTEND_URL", "server.frontend_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   12,
			Usage:   "Maximum request body size in MB",
			Sources: sources("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: sources("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: sources("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/photobooth.db",
			Usage:   "Database DSN",
			Sources: sources("DATABASE_DSN", "database.dsn"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-secret",
			Usage:   "HMAC secret for signing access tokens",
			Sources: sources("JWT_SECRET", "session.secret"),
		},
		&cli.DurationFlag{
			Name:    "session-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Access token lifetime",
			Sources: sources("JWT_TTL", "session.ttl"),
		},
		&cli.StringFlag{
			Name:    "session-issuer",
			Value:   "photobooth",
			Usage:   "Issuer claim of access tokens",
			Sources: sources("JWT_ISSUER", "session.issuer"),
		},
		// Verification flags
		&cli.DurationFlag{
			Name:    "verification-code-ttl",
			Value:   15 * time.Minute,
			Usage:   "Lifetime of one-time verification codes",
			Sources: sources("VERIFICATION_CODE_TTL", "verification.code_ttl"),
		},
		&cli.DurationFlag{
			Name:    "verification-link-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of verification links",
			Sources: sources("VERIFICATION_LINK_TTL", "verification.link_ttl"),
		},
		// Share flags
		&cli.DurationFlag{
			Name:    "share-ttl",
			Value:   14 * 24 * time.Hour,
			Usage:   "Lifetime of share links",
			Sources: sources("SHARE_TTL", "share.ttl"),
		},
		&cli.DurationFlag{
			Name:    "share-sweep-interval",
			Value:   time.Hour,
			Usage:   "Interval of the expired-record sweeper (0 disables it)",
			Sources: sources("SHARE_SWEEP_INTERVAL", "share.sweep_interval"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (emails are logged when empty)",
			Sources: sources("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: sources("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: sources("SMTP_USER", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: sources("SMTP_PASS", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@photobooth.local",
			Usage:   "Sender address",
			Sources: sources("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Photobooth",
			Usage:   "Sender display name",
			Sources: sources("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: sources("SMTP_TLS", "smtp.tls"),
		},
		// OAuth flags
		&cli.StringFlag{
			Name:    "google-client-id",
			Usage:   "Google OAuth client ID",
			Sources: sources("GOOGLE_CLIENT_ID", "oauth.google.client_id"),
		},
		&cli.StringFlag{
			Name:    "google-client-secret",
			Usage:   "Google OAuth client secret",
			Sources: sources("GOOGLE_CLIENT_SECRET", "oauth.google.client_secret"),
		},
		&cli.StringFlag{
			Name:    "facebook-client-id",
			Usage:   "Facebook app ID",
			Sources: sources("FACEBOOK_APP_ID", "oauth.facebook.client_id"),
		},
		&cli.StringFlag{
			Name:    "facebook-client-secret",
			Usage:   "Facebook app secret",
			Sources: sources("FACEBOOK_APP_SECRET", "oauth.facebook.client_secret"),
		},
		&cli.StringFlag{
			Name:    "oauth-state-key",
			Usage:   "OAuth state cookie hash key (32-byte hex, random if empty)",
			Sources: sources("OAUTH_STATE_KEY", "oauth.state_key"),
		},
		// Storage flags
		&cli.StringFlag{
			Name:    "storage-endpoint",
			Usage:   "S3-compatible endpoint (empty for AWS)",
			Sources: sources("S3_ENDPOINT", "storage.endpoint"),
		},
		&cli.StringFlag{
			Name:    "storage-region",
			Value:   "us-east-1",
			Usage:   "S3 region",
			Sources: sources("S3_REGION", "storage.region"),
		},
		&cli.StringFlag{
			Name:    "storage-bucket",
			Usage:   "S3 bucket for photos (uploads disabled when empty)",
			Sources: sources("S3_BUCKET", "storage.bucket"),
		},
		&cli.StringFlag{
			Name:    "storage-access-key",
			Usage:   "S3 access key",
			Sources: sources("S3_ACCESS_KEY", "storage.access_key"),
		},
		&cli.StringFlag{
			Name:    "storage-secret-key",
			Usage:   "S3 secret key",
			Sources: sources("S3_SECRET_KEY", "storage.secret_key"),
		},
		&cli.StringFlag{
			Name:    "storage-public-url",
			Usage:   "Base URL photos are served from",
			Sources: sources("S3_PUBLIC_URL", "storage.public_url"),
		},
		// Rate limit flags
		&cli.FloatFlag{
			Name:    "ratelimit-auth-rps",
			Value:   0.5,
			Usage:   "Sustained requests per second per client on auth endpoints",
			Sources: sources("RATELIMIT_AUTH_RPS", "ratelimit.auth_rps"),
		},
		&cli.IntFlag{
			Name:    "ratelimit-auth-burst",
			Value:   10,
			Usage:   "Burst size per client on auth endpoints",
			Sources: sources("RATELIMIT_AUTH_BURST", "ratelimit.auth_burst"),
		},
	}
}
