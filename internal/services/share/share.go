// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package share grants time-boxed anonymous access to resources.
//
// Resource IDs are opaque here; callers resolve them through their own
// stores. Tokens are reusable until they expire and are never mutated.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/metrics"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/verification"
)

const (
	// DefaultTTL is the lifetime of a share token.
	DefaultTTL = 14 * 24 * time.Hour
	// TokenLength is the number of random bytes in a share token.
	TokenLength = 32
)

var (
	ErrForbidden = errors.New("not allowed to share this resource")
	ErrNotFound  = errors.New("share link not found or expired")
)

// Store is the share token persistence.
type Store interface {
	GetOrCreateShareToken(ctx context.Context, resourceID string, now time.Time, ttl time.Duration,
		newToken func() (string, error)) (*models.ShareToken, bool, error)
	GetShareToken(ctx context.Context, token string) (*models.ShareToken, error)
	GetLatestShareToken(ctx context.Context, resourceID string) (*models.ShareToken, error)
	DeleteExpiredShareTokens(ctx context.Context, now time.Time) (int64, error)
}

// Link is a share token together with its public URL.
type Link struct {
	Token     string    `json:"token"`
	ShareURL  string    `json:"shareUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
	// Created reports whether the token was minted by this call.
	Created bool `json:"-"`
}

// Gate creates and redeems share tokens.
type Gate struct {
	store   Store
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	metrics metrics.Recorder
}

// Option configures a Gate.
type Option func(*Gate)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithMetrics records share activity.
func WithMetrics(m metrics.Recorder) Option {
	return func(g *Gate) { g.metrics = m }
}

// NewGate creates a Gate. baseURL prefixes the share URLs it returns.
func NewGate(store Store, baseURL string, opts ...Option) *Gate {
	g := &Gate{
		store:   store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		ttl:     DefaultTTL,
		now:     time.Now,
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize reports whether user may share a resource owned by ownerID.
// Owners and admins may; everyone else gets ErrForbidden.
func Authorize(user *models.User, ownerID *string) error {
	if user == nil {
		return ErrForbidden
	}
	if user.IsAdmin() || (ownerID != nil && *ownerID == user.ID) {
		return nil
	}
	return ErrForbidden
}

// CreateLink returns the unexpired token of resourceID, minting one if none
// exists.
func (g *Gate) CreateLink(ctx context.Context, resourceID string) (*Link, error) {
	token, created, err := g.store.GetOrCreateShareToken(ctx, resourceID, g.now(), g.ttl, newToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create share token: %w", err)
	}
	g.metrics.RecordShareCreated(!created)
	if created {
		slog.InfoContext(ctx, "share_created", "resource_id", resourceID, "expires_at", token.ExpiresAt)
	}

	link := g.link(token)
	link.Created = created
	return link, nil
}

// Current returns the newest token of resourceID, expired or not, or
// ErrNotFound.
func (g *Gate) Current(ctx context.Context, resourceID string) (*Link, error) {
	token, err := g.store.GetLatestShareToken(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g.link(token), nil
}

// Redeem resolves token to its resource ID. Unknown and expired tokens both
// yield ErrNotFound.
func (g *Gate) Redeem(ctx context.Context, token string) (resourceID string, err error) {
	defer func() { g.metrics.RecordShareRedeemed(metrics.Result(err)) }()

	share, err := g.store.GetShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if share.ExpiredAt(g.now()) {
		return "", ErrNotFound
	}
	return share.ResourceID, nil
}

// Sweep deletes expired tokens and returns how many were removed.
func (g *Gate) Sweep(ctx context.Context) (int64, error) {
	n, err := g.store.DeleteExpiredShareTokens(ctx, g.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired share tokens: %w", err)
	}
	g.metrics.RecordSweep("share_tokens", n)
	return n, nil
}

func (g *Gate) link(t *models.ShareToken) *Link {
	return &Link{
		Token:     t.Token,
		ShareURL:  g.baseURL + "/share/" + t.Token,
		ExpiresAt: t.ExpiresAt,
	}
}

func newToken() (string, error) {
	return verification.GenerateToken(TokenLength)
}
