// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification issues and redeems email ownership challenges.
//
// A challenge pairs a short numeric code with a high-entropy link token. The
// link token is stored as a SHA-256 hash. The code has only 10^6 values, so a
// plain hash would be reversible by enumeration; it is stored as an
// HMAC-SHA256 under a server-side key, bound to the email address.
package verification

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"github.com/google/uuid"
)

const (
	// CodeLength is the number of digits in a one-time code.
	CodeLength = 6
	// LinkTokenLength is the number of random bytes in a link token.
	LinkTokenLength = 32
	// DefaultCodeTTL is how long a one-time code stays redeemable.
	DefaultCodeTTL = 15 * time.Minute
	// DefaultLinkTTL is how long a verification link stays redeemable.
	DefaultLinkTTL = 24 * time.Hour
)

const digits = "0123456789"

var (
	ErrInvalidOrExpired = errors.New("invalid or expired verification code")
	ErrAlreadyVerified  = errors.New("email already verified")
)

// Store is the persistence the engine needs.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateChallenge(ctx context.Context, c *models.VerificationChallenge) error
	ConsumeChallengeByCode(ctx context.Context, email, codeHash string, now time.Time) (*models.User, error)
	ConsumeChallengeByLink(ctx context.Context, linkTokenHash string, now time.Time) (*models.User, error)
}

// Issued holds the plaintext secrets of a freshly stored challenge.
type Issued struct {
	Email         string
	Code          string
	LinkToken     string
	CodeExpiresAt time.Time
	LinkExpiresAt time.Time
}

// Engine issues and redeems verification challenges.
type Engine struct {
	store   Store
	codeTTL time.Duration
	linkTTL time.Duration
	codeKey []byte
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTTL overrides the code and link lifetimes. Zero values keep the defaults.
func WithTTL(code, link time.Duration) Option {
	return func(e *Engine) {
		if code > 0 {
			e.codeTTL = code
		}
		if link > 0 {
			e.linkTTL = link
		}
	}
}

// WithCodeKey sets the HMAC key for stored codes. Without it the engine uses
// a random key, so codes do not survive a restart.
func WithCodeKey(key []byte) Option {
	return func(e *Engine) {
		if len(key) > 0 {
			e.codeKey = key
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine backed by store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		codeTTL: DefaultCodeTTL,
		linkTTL: DefaultLinkTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.codeKey == nil {
		e.codeKey = make([]byte, sha256.Size)
		_, _ = rand.Read(e.codeKey)
	}
	return e
}

// Issue creates a challenge for email. Earlier challenges stay redeemable.
func (e *Engine) Issue(ctx context.Context, email string) (*Issued, error) {
	code, err := generateCode(CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	linkToken, err := GenerateToken(LinkTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate link token: %w", err)
	}

	now := e.now()
	challenge := &models.VerificationChallenge{
		ID:            uuid.NewString(),
		Email:         models.NormalizeEmail(email),
		CodeHash:      HashCode(e.codeKey, email, code),
		LinkTokenHash: HashToken(linkToken),
		CodeExpiresAt: now.Add(e.codeTTL),
		LinkExpiresAt: now.Add(e.linkTTL),
		CreatedAt:     now,
	}
	if err := e.store.CreateChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return &Issued{
		Email:         challenge.Email,
		Code:          code,
		LinkToken:     linkToken,
		CodeExpiresAt: challenge.CodeExpiresAt,
		LinkExpiresAt: challenge.LinkExpiresAt,
	}, nil
}

// RedeemByCode consumes the challenge matching (email, code) and marks the
// account verified.
func (e *Engine) RedeemByCode(ctx context.Context, email, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if !isCode(code) {
		return nil, ErrInvalidOrExpired
	}
	user, err := e.store.ConsumeChallengeByCode(ctx, email, HashCode(e.codeKey, email, code), e.now())
	return redeemed(user, err)
}

// RedeemByLink consumes the challenge holding token and marks the account
// verified.
func (e *Engine) RedeemByLink(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpired
	}
	user, err := e.store.ConsumeChallengeByLink(ctx, HashToken(token), e.now())
	return redeemed(user, err)
}

func redeemed(user *models.User, err error) (*models.User, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	return user, nil
}

// Reissue issues a fresh challenge for an existing, unverified account.
// It returns repository.ErrNotFound for unknown emails.
func (e *Engine) Reissue(ctx context.Context, email string) (*Issued, error) {
	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return nil, ErrAlreadyVerified
	}
	return e.Issue(ctx, user.Email)
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// HashCode computes the keyed hash stored for a one-time code.
func HashCode(key []byte, email, code string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(models.NormalizeEmail(email)))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateToken returns n random bytes, hex encoded.
func GenerateToken(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// generateCode returns a random numeric code of the given length. Bytes at
// or above the largest multiple of len(digits) are discarded to keep the
// distribution uniform.
func generateCode(length int) (string, error) {
	const limit = 256 - 256%len(digits)

	code := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, digits[int(b)%len(digits)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}

func isCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
