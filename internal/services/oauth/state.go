// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/services/verification"
	"github.com/gorilla/securecookie"
)

const (
	// StateCookieName is the cookie carrying the pending authorization state.
	StateCookieName = "oauth_state"
	stateTTL        = 10 * time.Minute
)

// ErrInvalidState is returned when the callback state does not match the
// cookie set at the start of the flow.
var ErrInvalidState = errors.New("invalid oauth state")

type pendingState struct {
	State    string
	Provider models.Provider
}

// StateStore binds an authorization request to the browser that started it
// with a signed, short-lived cookie.
type StateStore struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewStateStore creates a StateStore signing with key. secure marks the
// cookie HTTPS-only.
func NewStateStore(key string, secure bool) *StateStore {
	hashKey := sha256.Sum256([]byte(key))
	codec := securecookie.New(hashKey[:], nil)
	codec.MaxAge(int(stateTTL.Seconds()))
	return &StateStore{codec: codec, secure: secure}
}

// Begin creates a state for provider and stores it in a cookie.
func (s *StateStore) Begin(w http.ResponseWriter, provider models.Provider) (string, error) {
	state, err := verification.GenerateToken(16)
	if err != nil {
		return "", err
	}

	encoded, err := s.codec.Encode(StateCookieName, pendingState{State: state, Provider: provider})
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    encoded,
		Path:     "/auth/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// Verify checks state against the cookie and clears the cookie.
func (s *StateStore) Verify(w http.ResponseWriter, r *http.Request, provider models.Provider, state string) error {
	cookie, err := r.Cookie(StateCookieName)
	if err != nil {
		return ErrInvalidState
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/auth/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	var pending pendingState
	if err := s.codec.Decode(StateCookieName, cookie.Value, &pending); err != nil {
		return ErrInvalidState
	}
	if pending.Provider != provider || state == "" ||
		subtle.ConstantTimeCompare([]byte(pending.State), []byte(state)) != 1 {
		return ErrInvalidState
	}
	return nil
}
