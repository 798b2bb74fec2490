// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// User is an account identity record.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  *string   `db:"password_hash" json:"-"`
	DisplayName   *string   `db:"display_name" json:"name"`
	AvatarURL     *string   `db:"avatar_url" json:"avatarUrl"`
	EmailVerified bool      `db:"email_verified" json:"emailVerified"`
	Provider      Provider  `db:"provider" json:"provider,omitempty"`
	ProviderID    *string   `db:"provider_id" json:"-"`
	Role          Role      `db:"role" json:"role"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsFederated reports whether a federated identity is linked to the account.
func (u *User) IsFederated() bool {
	return u.Provider != ProviderNone
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
