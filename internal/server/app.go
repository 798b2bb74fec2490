// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/config"
	"codeberg.org/oliverandrich/photobooth/internal/metrics"
	"codeberg.org/oliverandrich/photobooth/internal/middleware"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/auth"
	"codeberg.org/oliverandrich/photobooth/internal/services/email"
	"codeberg.org/oliverandrich/photobooth/internal/services/framers"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"codeberg.org/oliverandrich/photobooth/internal/services/oauth"
	"codeberg.org/oliverandrich/photobooth/internal/services/photos"
	"codeberg.org/oliverandrich/photobooth/internal/services/session"
	"codeberg.org/oliverandrich/photobooth/internal/services/share"
	"codeberg.org/oliverandrich/photobooth/internal/services/storage"
	"codeberg.org/oliverandrich/photobooth/internal/services/verification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vinovest/sqlx"
	"golang.org/x/time/rate"
)

// challengeRetention is how long consumed or expired challenges are kept.
const challengeRetention = 24 * time.Hour

// App holds the services shared by the HTTP server and the CLI commands.
type App struct {
	Config    *config.Config
	Repo      *repository.Repository
	Registry  *prometheus.Registry
	Metrics   *metrics.Collector
	Auth      *auth.Gate
	Shares    *share.Gate
	Photos    *photos.Service
	Framers   *framers.Service
	Providers *oauth.Registry
	States    *oauth.StateStore
	Limiter   *middleware.RateLimiter
}

// NewApp wires the services for cfg on top of db.
func NewApp(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	repo := repository.New(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	sessions, err := session.NewIssuer(cfg.Session.Secret,
		session.WithTTL(cfg.Session.TTL),
		session.WithIssuer(cfg.Session.Issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session issuer: %w", err)
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return nil, err
	}

	objects, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	engine := verification.NewEngine(repo,
		verification.WithTTL(cfg.Verification.CodeTTL, cfg.Verification.LinkTTL),
		verification.WithCodeKey(codeKey(cfg.Session.Secret)),
	)

	gate := auth.NewGate(auth.Deps{
		Users:       repo,
		Resolver:    identity.NewResolver(repo),
		Engine:      engine,
		Sessions:    sessions,
		Notifier:    notifier,
		Metrics:     collector,
		FrontendURL: cfg.Server.FrontendURL,
	})

	authRate := rate.Limit(cfg.RateLimit.AuthRPS)
	if cfg.RateLimit.AuthRPS <= 0 {
		authRate = rate.Inf
	}

	stateKey := cfg.OAuth.StateKey
	if stateKey == "" {
		stateKey = "oauth-state:" + cfg.Session.Secret
	}

	app := &App{
		Config:    cfg,
		Repo:      repo,
		Registry:  registry,
		Metrics:   collector,
		Auth:      gate,
		Shares:    share.NewGate(repo, cfg.Server.FrontendURL, share.WithTTL(cfg.Share.TTL), share.WithMetrics(collector)),
		Photos:    photos.NewService(repo, objects),
		Framers:   framers.NewService(repo, objects),
		Providers: oauth.NewRegistry(cfg.OAuth, cfg.Server.BaseURL),
		States:    oauth.NewStateStore(stateKey, strings.HasPrefix(cfg.Server.BaseURL, "https://")),
		Limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  authRate,
			Burst: cfg.RateLimit.AuthBurst,
		}),
	}
	return app, nil
}

// Close stops background work and waits for pending notifications.
func (a *App) Close() {
	a.Limiter.Stop()
	a.Auth.Wait()
}

// codeKey derives the verification code HMAC key from the session secret.
func codeKey(secret string) []byte {
	sum := sha256.Sum256([]byte("verification-code:" + secret))
	return sum[:]
}

func newNotifier(cfg *config.Config) (email.Notifier, error) {
	if !cfg.SMTP.Enabled() {
		slog.Warn("SMTP not configured, verification emails will be logged")
		return email.NewLogNotifier(slog.Default()), nil
	}
	svc, err := email.NewService(&cfg.SMTP, cfg.Verification.CodeTTL, cfg.Verification.LinkTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}
	return svc, nil
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	if !cfg.Enabled() {
		slog.Warn("object storage not configured, photo uploads are disabled")
		return nil, nil
	}
	store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	return store, nil
}

// SweepResult counts the records removed by one sweep.
type SweepResult struct {
	ShareTokens int64
	Challenges  int64
}

// Sweep deletes expired share tokens and stale verification challenges.
func (a *App) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	n, err := a.Shares.Sweep(ctx)
	if err != nil {
		return res, err
	}
	res.ShareTokens = n

	n, err = a.Repo.DeleteStaleChallenges(ctx, time.Now().Add(-challengeRetention))
	if err != nil {
		return res, fmt.Errorf("failed to delete stale challenges: %w", err)
	}
	res.Challenges = n
	a.Metrics.RecordSweep("challenges", n)

	slog.InfoContext(ctx, "sweep_completed",
		"share_tokens", res.ShareTokens,
		"challenges", res.Challenges,
	)
	return res, nil
}

// runSweeper calls Sweep every interval until ctx is done.
func (a *App) runSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "sweep_failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
