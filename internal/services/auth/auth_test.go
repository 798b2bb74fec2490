// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"errors"
	"testing"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/auth"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"codeberg.org/oliverandrich/photobooth/internal/services/session"
	"codeberg.org/oliverandrich/photobooth/internal/services/verification"
	"codeberg.org/oliverandrich/photobooth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	gate     *auth.Gate
	repo     *repository.Repository
	notifier *testutil.Notifier
	sessions *session.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	sessions, err := session.NewIssuer("test-secret")
	require.NoError(t, err)
	notifier := &testutil.Notifier{}

	gate := auth.NewGate(auth.Deps{
		Users:       repo,
		Resolver:    identity.NewResolver(repo),
		Engine:      verification.NewEngine(repo),
		Sessions:    sessions,
		Notifier:    notifier,
		FrontendURL: "https://app.example.com/",
		BcryptCost:  bcrypt.MinCost,
	})
	return &fixture{gate: gate, repo: repo, notifier: notifier, sessions: sessions}
}

func (f *fixture) register(t *testing.T, emailAddr, password string) *models.User {
	t.Helper()
	user, err := f.gate.Register(context.Background(), auth.RegisterParams{Email: emailAddr, Password: password})
	require.NoError(t, err)
	f.gate.Wait()
	return user
}

func TestRegisterVerifyLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.register(t, "u@test.io", "secret1")
	require.NotEmpty(t, user.ID)

	_, err := f.gate.LoginPassword(ctx, "u@test.io", "secret1")
	require.ErrorIs(t, err, auth.ErrEmailNotVerified)

	code := f.notifier.LastCode("u@test.io")
	require.Len(t, code, verification.CodeLength)
	payload, err := f.gate.VerifyByCode(ctx, "u@test.io", code)
	require.NoError(t, err)
	assert.True(t, payload.User.EmailVerified)
	assert.Equal(t, user.ID, payload.User.ID)
	assert.NotEmpty(t, payload.AccessToken)

	payload, err = f.gate.LoginPassword(ctx, "u@test.io", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, payload.User.ID)

	claims, err := f.sessions.Verify(payload.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())
	assert.Equal(t, "u@test.io", claims.Email)
}

func TestRegister_SendsCodeAndLink(t *testing.T) {
	f := newFixture(t)

	f.register(t, "Alice@Example.com", "secret1")

	msgs := f.notifier.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "alice@example.com", msgs[0].To)
	assert.Regexp(t, `^\d{6}$`, msgs[0].Code)
	assert.Regexp(t, `^https://app\.example\.com/verify-email\?token=[0-9a-f]{64}$`, msgs[1].Link)
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "secret1")

	_, err := f.gate.Register(context.Background(), auth.RegisterParams{Email: "ALICE@example.com", Password: "secret2"})

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gate.Register(ctx, auth.RegisterParams{Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, auth.ErrInvalidEmail)

	_, err = f.gate.Register(ctx, auth.RegisterParams{Email: "Alice <alice@example.com>", Password: "secret1"})
	assert.ErrorIs(t, err, auth.ErrInvalidEmail)

	_, err = f.gate.Register(ctx, auth.RegisterParams{Email: "alice@example.com", Password: "abc"})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
	var pve *auth.PasswordValidationError
	assert.True(t, errors.As(err, &pve))

	count, err := f.repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRegister_NotifierFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("smtp down")

	user, err := f.gate.Register(context.Background(), auth.RegisterParams{Email: "alice@example.com", Password: "secret1"})
	f.gate.Wait()

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
}

func TestRegister_StoresName(t *testing.T) {
	f := newFixture(t)

	user, err := f.gate.Register(context.Background(), auth.RegisterParams{
		Email: "alice@example.com", Password: "secret1", Name: "  Alice ",
	})
	f.gate.Wait()

	require.NoError(t, err)
	require.NotNil(t, user.DisplayName)
	assert.Equal(t, "Alice", *user.DisplayName)
}

func TestLoginPassword_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.NewTestUser(t, f.repo, "alice@example.com", "secret1", true)

	_, err := f.gate.LoginPassword(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.gate.LoginPassword(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginPassword_WrongPasswordBeforeVerification(t *testing.T) {
	f := newFixture(t)
	testutil.NewTestUser(t, f.repo, "alice@example.com", "secret1", false)

	_, err := f.gate.LoginPassword(context.Background(), "alice@example.com", "wrong-password")

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginPassword_FederatedOnlyAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.gate.LoginFederated(ctx, identity.Assertion{
		Provider: models.ProviderGoogle, ProviderID: "g-1", Email: "alice@example.com",
	})
	require.NoError(t, err)

	_, err = f.gate.LoginPassword(ctx, "alice@example.com", "anything")

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginFederated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := identity.Assertion{
		Provider:    models.ProviderFacebook,
		ProviderID:  "fb-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
	}

	first, err := f.gate.LoginFederated(ctx, a)
	require.NoError(t, err)
	assert.True(t, first.User.EmailVerified)
	assert.Equal(t, "Alice", *first.User.Name)

	second, err := f.gate.LoginFederated(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestLoginFederated_MergesUnverifiedPasswordAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice@example.com", "secret1")

	payload, err := f.gate.LoginFederated(ctx, identity.Assertion{
		Provider: models.ProviderGoogle, ProviderID: "g-1", Email: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, payload.User.ID)
	assert.True(t, payload.User.EmailVerified)

	// Password login keeps working after the merge.
	payload, err = f.gate.LoginPassword(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, payload.User.ID)
}

func TestLoginFederated_MissingEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.LoginFederated(context.Background(), identity.Assertion{
		Provider: models.ProviderGoogle, ProviderID: "g-1",
	})

	assert.ErrorIs(t, err, identity.ErrMissingEmail)
}

func TestVerifyByLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice@example.com", "secret1")

	token := f.notifier.LastLinkToken("alice@example.com")
	payload, err := f.gate.VerifyByLink(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, payload.User.ID)

	_, err = f.gate.VerifyByLink(ctx, token)
	assert.ErrorIs(t, err, verification.ErrInvalidOrExpired)

	_, err = f.gate.VerifyByCode(ctx, "alice@example.com", f.notifier.LastCode("alice@example.com"))
	assert.ErrorIs(t, err, verification.ErrInvalidOrExpired)
}

func TestResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com", "secret1")
	firstCode := f.notifier.LastCode("alice@example.com")

	require.NoError(t, f.gate.Resend(ctx, "alice@example.com"))
	f.gate.Wait()
	assert.Len(t, f.notifier.Messages(), 4)

	// Both codes remain valid until used.
	_, err := f.gate.VerifyByCode(ctx, "alice@example.com", firstCode)
	require.NoError(t, err)

	err = f.gate.Resend(ctx, "alice@example.com")
	assert.ErrorIs(t, err, verification.ErrAlreadyVerified)

	err = f.gate.Resend(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProfileAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice@example.com", "secret1", true)

	payload, err := f.gate.LoginPassword(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	authed, err := f.gate.Authenticate(ctx, payload.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	profile, err := f.gate.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.Email)

	_, err = f.gate.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, session.ErrInvalidToken)

	require.NoError(t, f.repo.DeleteUser(ctx, user.ID))
	_, err = f.gate.Authenticate(ctx, payload.AccessToken)
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestNewUserView(t *testing.T) {
	name := "Alice"
	view := auth.NewUserView(&models.User{
		ID: "u1", Email: "alice@example.com", DisplayName: &name, EmailVerified: true, Role: models.RoleAdmin,
	})

	assert.Equal(t, "u1", view.ID)
	assert.Equal(t, &name, view.Name)
	assert.Nil(t, view.AvatarURL)
	assert.Equal(t, models.RoleAdmin, view.Role)
}

func TestVerificationLink(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "https://app.example.com/verify-email?token=abc", f.gate.VerificationLink("abc"))
}
