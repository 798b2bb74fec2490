// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// VerificationChallenge is a pending proof of email ownership. It carries a
// numeric code and a link token; only their SHA256 hashes are stored.
type VerificationChallenge struct { //nolint:govet // fieldalignment: readability over optimization
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	CodeHash      string     `db:"code_hash" json:"-"`
	LinkTokenHash string     `db:"link_token_hash" json:"-"`
	CodeExpiresAt time.Time  `db:"code_expires_at" json:"code_expires_at"`
	LinkExpiresAt time.Time  `db:"link_expires_at" json:"link_expires_at"`
	UsedAt        *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// IsUsed reports whether the challenge has been consumed.
func (c *VerificationChallenge) IsUsed() bool {
	return c.UsedAt != nil
}
