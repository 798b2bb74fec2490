// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import (
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-32b"

func testUser() *models.User {
	return &models.User{ID: "user-1", Email: "alice@example.com"}
}

func TestNewIssuer(t *testing.T) {
	_, err := NewIssuer("")
	assert.ErrorIs(t, err, ErrNoSecret)

	i, err := NewIssuer(testSecret, WithTTL(time.Hour), WithIssuer("custom"))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, i.TTL())
	assert.Equal(t, "custom", i.issuer)

	i, err = NewIssuer(testSecret, WithTTL(0), WithIssuer(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, i.TTL())
	assert.Equal(t, DefaultIssuer, i.issuer)
}

func TestIssueAndVerify(t *testing.T) {
	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	token, err := i.Issue(testUser())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), claims.ExpiresAt.Time, 5*time.Second)
}

func TestVerify_Expired(t *testing.T) {
	now := time.Now()
	i, err := NewIssuer(testSecret, WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	token, err := i.Issue(testUser())
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = i.Verify(token)

	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer, err := NewIssuer(testSecret)
	require.NoError(t, err)
	other, err := NewIssuer("another-secret")
	require.NoError(t, err)
	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	_, err = other.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	a, err := NewIssuer(testSecret, WithIssuer("a"))
	require.NoError(t, err)
	b, err := NewIssuer(testSecret, WithIssuer("b"))
	require.NoError(t, err)
	token, err := a.Issue(testUser())
	require.NoError(t, err)

	_, err = b.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = i.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err = hs512.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = i.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MissingClaims(t *testing.T) {
	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: DefaultIssuer},
	})
	token, err := noExpiry.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = i.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err = noSubject.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = i.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := i.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}
