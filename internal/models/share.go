// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ShareToken grants anonymous read access to one resource until it expires.
type ShareToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID         string    `db:"id" json:"id"`
	ResourceID string    `db:"resource_id" json:"resourceId"`
	Token      string    `db:"token" json:"token"`
	ExpiresAt  time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ExpiredAt reports whether the token is no longer valid at t.
func (s *ShareToken) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
