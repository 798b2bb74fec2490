// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth orchestrates registration, login and email verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/metrics"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/email"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"codeberg.org/oliverandrich/photobooth/internal/services/session"
	"codeberg.org/oliverandrich/photobooth/internal/services/verification"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Store is the account persistence the gate needs.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreatePasswordUser(ctx context.Context, email, passwordHash, displayName string) (*models.User, error)
}

// Deps are the collaborators of a Gate.
type Deps struct {
	Users    Store
	Resolver *identity.Resolver
	Engine   *verification.Engine
	Sessions *session.Issuer
	Notifier email.Notifier
	Metrics  metrics.Recorder
	// FrontendURL is the base of the verification links sent by email.
	FrontendURL string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Gate composes the identity services into the user-facing auth flows.
type Gate struct {
	users             Store
	resolver          *identity.Resolver
	engine            *verification.Engine
	sessions          *session.Issuer
	notifier          email.Notifier
	metrics           metrics.Recorder
	frontendURL       string
	bcryptCost        int
	passwordValidator *PasswordValidator

	// dispatches tracks notifications still being delivered.
	dispatches sync.WaitGroup
}

// NewGate creates a Gate.
func NewGate(d Deps) *Gate {
	g := &Gate{
		users:             d.Users,
		resolver:          d.Resolver,
		engine:            d.Engine,
		sessions:          d.Sessions,
		notifier:          d.Notifier,
		metrics:           d.Metrics,
		frontendURL:       strings.TrimSuffix(d.FrontendURL, "/"),
		bcryptCost:        d.BcryptCost,
		passwordValidator: DefaultPasswordValidator(),
	}
	if g.metrics == nil {
		g.metrics = metrics.Nop{}
	}
	if g.bcryptCost == 0 {
		g.bcryptCost = bcrypt.DefaultCost
	}
	return g
}

// UserView is the public representation of an account.
type UserView struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	Name          *string     `json:"name"`
	AvatarURL     *string     `json:"avatarUrl"`
	EmailVerified bool        `json:"emailVerified"`
	Role          models.Role `json:"role"`
}

// NewUserView builds the public view of u.
func NewUserView(u *models.User) UserView {
	return UserView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.DisplayName,
		AvatarURL:     u.AvatarURL,
		EmailVerified: u.EmailVerified,
		Role:          u.Role,
	}
}

// SessionPayload is returned by every flow that signs a user in.
type SessionPayload struct {
	AccessToken string    `json:"accessToken"`
	User        UserView  `json:"user"`
	ExpiresAt   time.Time `json:"-"`
}

func (g *Gate) newSession(user *models.User) (*SessionPayload, error) {
	token, err := g.sessions.Issue(user)
	if err != nil {
		return nil, err
	}
	return &SessionPayload{
		AccessToken: token,
		User:        NewUserView(user),
		ExpiresAt:   time.Now().Add(g.sessions.TTL()),
	}, nil
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email    string
	Password string
	Name     string
}

// Register creates an unverified password account and sends a verification
// code and link to its address. It returns repository.ErrConflict when the
// email is taken.
func (g *Gate) Register(ctx context.Context, params RegisterParams) (user *models.User, err error) {
	defer func() { g.metrics.RecordRegistration(metrics.Result(err)) }()

	addr, err := parseEmail(params.Email)
	if err != nil {
		return nil, err
	}

	if err := g.passwordValidator.Validate(params.Password); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), g.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err = g.users.CreatePasswordUser(ctx, addr, string(passwordHash), strings.TrimSpace(params.Name))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			slog.WarnContext(ctx, "register_failed", "email", addr, "reason", "email_taken")
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	issued, err := g.engine.Issue(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	g.dispatch(ctx, issued)

	slog.InfoContext(ctx, "register_success", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// LoginPassword authenticates with email and password.
func (g *Gate) LoginPassword(ctx context.Context, emailAddr, password string) (payload *SessionPayload, err error) {
	defer func() { g.metrics.RecordLogin("password", metrics.Result(err)) }()

	user, err := g.users.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.WarnContext(ctx, "login_failed", "email", emailAddr, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		slog.WarnContext(ctx, "login_failed", "email", user.Email, "reason", "no_password")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "login_failed", "email", user.Email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		slog.WarnContext(ctx, "login_failed", "email", user.Email, "reason", "email_not_verified")
		return nil, ErrEmailNotVerified
	}

	slog.InfoContext(ctx, "login_success", "user_id", user.ID, "email", user.Email)
	return g.newSession(user)
}

// LoginFederated signs in with a provider assertion. Federated accounts are
// verified by their provider, so no verification check applies.
func (g *Gate) LoginFederated(ctx context.Context, a identity.Assertion) (payload *SessionPayload, err error) {
	defer func() { g.metrics.RecordLogin(string(a.Provider), metrics.Result(err)) }()

	user, err := g.resolver.Resolve(ctx, a)
	if err != nil {
		slog.WarnContext(ctx, "federated_login_failed", "provider", a.Provider, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "login_success", "user_id", user.ID, "provider", a.Provider)
	return g.newSession(user)
}

// VerifyByCode redeems a one-time code and signs the user in.
func (g *Gate) VerifyByCode(ctx context.Context, emailAddr, code string) (payload *SessionPayload, err error) {
	defer func() { g.metrics.RecordVerification("code", metrics.Result(err)) }()

	user, err := g.engine.RedeemByCode(ctx, emailAddr, code)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "email_verified", "user_id", user.ID, "channel", "code")
	return g.newSession(user)
}

// VerifyByLink redeems a link token and signs the user in.
func (g *Gate) VerifyByLink(ctx context.Context, token string) (payload *SessionPayload, err error) {
	defer func() { g.metrics.RecordVerification("link", metrics.Result(err)) }()

	user, err := g.engine.RedeemByLink(ctx, token)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "email_verified", "user_id", user.ID, "channel", "link")
	return g.newSession(user)
}

// Resend issues a new challenge for an unverified account and sends it.
func (g *Gate) Resend(ctx context.Context, emailAddr string) error {
	issued, err := g.engine.Reissue(ctx, emailAddr)
	if err != nil {
		return err
	}
	g.dispatch(ctx, issued)
	return nil
}

// Profile returns the account behind a user ID.
func (g *Gate) Profile(ctx context.Context, userID string) (*models.User, error) {
	return g.users.GetUserByID(ctx, userID)
}

// Authenticate verifies a bearer token and loads its account. A token whose
// account no longer exists is reported as session.ErrInvalidToken.
func (g *Gate) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := g.sessions.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := g.users.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, session.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return user, nil
}

// Wait blocks until all pending notifications have been handed off.
func (g *Gate) Wait() {
	g.dispatches.Wait()
}

// VerificationLink builds the link that redeems token.
func (g *Gate) VerificationLink(token string) string {
	return g.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

// dispatch sends the code and the link without blocking the request. The
// request context is detached so delivery survives the response; locale
// values carried by ctx still apply.
func (g *Gate) dispatch(ctx context.Context, issued *verification.Issued) {
	ctx = context.WithoutCancel(ctx)
	link := g.VerificationLink(issued.LinkToken)

	g.dispatches.Add(1)
	go func() {
		defer g.dispatches.Done()
		if err := g.notifier.SendVerificationCode(ctx, issued.Email, issued.Code); err != nil {
			slog.ErrorContext(ctx, "verification_send_failed", "email", issued.Email, "channel", "code", "error", err)
		}
		if err := g.notifier.SendVerificationLink(ctx, issued.Email, link); err != nil {
			slog.ErrorContext(ctx, "verification_send_failed", "email", issued.Email, "channel", "link", "error", err)
		}
	}()
}

func parseEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return models.NormalizeEmail(addr.Address), nil
}
