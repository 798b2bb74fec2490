// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models defines the persisted records of the service.
package models

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Provider identifies a federated identity provider. The zero value means
// the account has no federated identity.
type Provider string

const (
	ProviderNone     Provider = ""
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// ParseProvider maps a route or config name to a Provider.
func ParseProvider(name string) (Provider, bool) {
	switch Provider(name) {
	case ProviderGoogle, ProviderFacebook:
		return Provider(name), true
	}
	return ProviderNone, false
}
