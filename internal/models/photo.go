// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Photo is an uploaded image stored in object storage.
type Photo struct { //nolint:govet // fieldalignment: readability over optimization
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"userId"`
	URL         string    `db:"url" json:"url"`
	ObjectKey   string    `db:"object_key" json:"-"`
	ContentType string    `db:"content_type" json:"contentType"`
	SizeBytes   int64     `db:"size_bytes" json:"bytes"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// OwnedBy reports whether userID owns the photo.
func (p *Photo) OwnedBy(userID string) bool {
	return p.UserID != nil && *p.UserID == userID
}
