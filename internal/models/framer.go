// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Layout is the photo grid a frame image is drawn for.
type Layout string

const (
	Layout1x4 Layout = "1x4"
	Layout2x3 Layout = "2x3"
	Layout2x2 Layout = "2x2"
)

// Layouts lists the supported layouts.
var Layouts = []Layout{Layout1x4, Layout2x3, Layout2x2}

// Valid reports whether l is a supported layout.
func (l Layout) Valid() bool {
	switch l {
	case Layout1x4, Layout2x3, Layout2x2:
		return true
	}
	return false
}

// Framer is a frame image users place their photos into.
type Framer struct { //nolint:govet // fieldalignment: readability over optimization
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ImageURL    string    `db:"image_url" json:"imageUrl"`
	ObjectKey   *string   `db:"object_key" json:"-"`
	Layout      Layout    `db:"layout" json:"layoutType"`
	AspectRatio *float64  `db:"aspect_ratio" json:"aspectRatio"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// ContributionStatus is the review state of a frame contribution.
type ContributionStatus string

const (
	ContributionPending  ContributionStatus = "pending"
	ContributionApproved ContributionStatus = "approved"
	ContributionRejected ContributionStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ContributionStatus) Valid() bool {
	switch s {
	case ContributionPending, ContributionApproved, ContributionRejected:
		return true
	}
	return false
}

// FramerContribution is a frame image submitted by a user for review.
type FramerContribution struct { //nolint:govet // fieldalignment: readability over optimization
	ID         string             `db:"id" json:"id"`
	UserID     string             `db:"user_id" json:"userId"`
	Name       string             `db:"name" json:"name"`
	ImageURL   string             `db:"image_url" json:"imageUrl"`
	ObjectKey  *string            `db:"object_key" json:"-"`
	Layout     Layout             `db:"layout" json:"layoutType"`
	Status     ContributionStatus `db:"status" json:"status"`
	CreatedAt  time.Time          `db:"created_at" json:"createdAt"`
	ReviewedAt *time.Time         `db:"reviewed_at" json:"reviewedAt"`
	ReviewedBy *string            `db:"reviewed_by" json:"reviewedBy"`
}

// IsPending reports whether the contribution awaits review.
func (c *FramerContribution) IsPending() bool {
	return c.Status == ContributionPending
}
