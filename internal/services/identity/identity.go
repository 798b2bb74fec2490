// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package identity decides how a federated sign-in maps onto local accounts.
//
// Email is the merge key: an assertion whose email matches an existing account
// is attached to that account, so the provider's email attestation is trusted
// as proof of ownership.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrMissingEmail is returned when the provider did not share an email address.
	ErrMissingEmail = errors.New("federated identity has no email address")
	// ErrInvalidAssertion is returned when the assertion lacks a provider subject.
	ErrInvalidAssertion = errors.New("federated identity has no provider subject")
)

// Assertion is a normalized identity statement from a federated provider.
type Assertion struct {
	Provider    models.Provider
	ProviderID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Validate checks the assertion and normalizes its email.
func (a *Assertion) Validate() error {
	if a.Provider == models.ProviderNone || strings.TrimSpace(a.ProviderID) == "" {
		return ErrInvalidAssertion
	}
	a.Email = models.NormalizeEmail(a.Email)
	if a.Email == "" {
		return ErrMissingEmail
	}
	return nil
}

// PlanKind names the action Decide chose.
type PlanKind int

const (
	// PlanRefresh updates the account already bound to the provider identity.
	PlanRefresh PlanKind = iota + 1
	// PlanLink attaches the provider identity to an account found by email.
	PlanLink
	// PlanCreate inserts a new account.
	PlanCreate
)

func (k PlanKind) String() string {
	switch k {
	case PlanRefresh:
		return "refresh"
	case PlanLink:
		return "link"
	case PlanCreate:
		return "create"
	}
	return "unknown"
}

// Plan is the outcome of Decide: the record to persist and how.
type Plan struct {
	Kind PlanKind
	User *models.User
}

// Decide computes the account state after a federated sign-in. byProvider is
// the account bound to (provider, providerID), byEmail the account holding the
// assertion's email; either may be nil. The inputs are not modified.
func Decide(byProvider, byEmail *models.User, a Assertion, now time.Time) Plan {
	if byProvider != nil {
		u := *byProvider
		refreshProfile(&u, a)
		u.EmailVerified = true
		u.UpdatedAt = now
		return Plan{Kind: PlanRefresh, User: &u}
	}

	if byEmail != nil {
		u := *byEmail
		u.Provider = a.Provider
		providerID := a.ProviderID
		u.ProviderID = &providerID
		refreshProfile(&u, a)
		u.EmailVerified = true
		u.UpdatedAt = now
		return Plan{Kind: PlanLink, User: &u}
	}

	providerID := a.ProviderID
	u := &models.User{
		ID:            uuid.NewString(),
		Email:         a.Email,
		EmailVerified: true,
		Provider:      a.Provider,
		ProviderID:    &providerID,
		Role:          models.RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	refreshProfile(u, a)
	return Plan{Kind: PlanCreate, User: u}
}

// refreshProfile copies newly supplied profile fields onto u.
func refreshProfile(u *models.User, a Assertion) {
	if name := strings.TrimSpace(a.DisplayName); name != "" {
		u.DisplayName = &name
	}
	if avatar := strings.TrimSpace(a.AvatarURL); avatar != "" {
		u.AvatarURL = &avatar
	}
}

// Store persists federated sign-ins atomically.
type Store interface {
	CreateOrUpdateFederatedUser(ctx context.Context, a Assertion) (*models.User, error)
}

// Resolver turns provider assertions into local accounts.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve validates the assertion and applies it to the account store.
func (r *Resolver) Resolve(ctx context.Context, a Assertion) (*models.User, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return r.store.CreateOrUpdateFederatedUser(ctx, a)
}
