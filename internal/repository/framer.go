// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/database"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"github.com/google/uuid"
)

// ErrNotPending is returned when a reviewed contribution is reviewed again.
var ErrNotPending = errors.New("contribution already reviewed")

const framerColumns = `id, name, image_url, object_key, layout, aspect_ratio, created_at`

const contributionColumns = `id, user_id, name, image_url, object_key, layout, status,
	created_at, reviewed_at, reviewed_by`

// CreateFramer stores a frame image.
func (r *Repository) CreateFramer(ctx context.Context, f *models.Framer) error {
	return insertFramer(ctx, r.db, f)
}

func insertFramer(ctx context.Context, q database.Querier, f *models.Framer) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO framers (`+framerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.ImageURL, f.ObjectKey, f.Layout, f.AspectRatio, utc(f.CreatedAt))
	return wrapError(err)
}

// GetFramerByID retrieves a frame image by ID.
func (r *Repository) GetFramerByID(ctx context.Context, id string) (*models.Framer, error) {
	var f models.Framer
	if err := r.db.GetContext(ctx, &f, `SELECT `+framerColumns+` FROM framers WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &f, nil
}

// ListFramers returns every frame image, newest first.
func (r *Repository) ListFramers(ctx context.Context) ([]models.Framer, error) {
	framers := []models.Framer{}
	err := r.db.SelectContext(ctx, &framers, `SELECT `+framerColumns+` FROM framers ORDER BY created_at DESC`)
	return framers, err
}

// UpdateFramer writes the name, image and layout of f.
func (r *Repository) UpdateFramer(ctx context.Context, f *models.Framer) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE framers SET name = ?, image_url = ?, object_key = ?, layout = ? WHERE id = ?`,
		f.Name, f.ImageURL, f.ObjectKey, f.Layout, f.ID)
	if err != nil {
		return wrapError(err)
	}
	return expectOne(res)
}

// DeleteFramer removes a frame image.
func (r *Repository) DeleteFramer(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM framers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CreateContribution stores a pending contribution.
func (r *Repository) CreateContribution(ctx context.Context, c *models.FramerContribution) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO framer_contributions (`+contributionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.ImageURL, c.ObjectKey, c.Layout, c.Status,
		utc(c.CreatedAt), c.ReviewedAt, c.ReviewedBy)
	return wrapError(err)
}

// GetContribution retrieves a contribution by ID.
func (r *Repository) GetContribution(ctx context.Context, id string) (*models.FramerContribution, error) {
	return getContribution(ctx, r.db, id)
}

func getContribution(ctx context.Context, q database.Querier, id string) (*models.FramerContribution, error) {
	var c models.FramerContribution
	if err := q.GetContext(ctx, &c, `SELECT `+contributionColumns+` FROM framer_contributions WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// ListContributionsByUser returns the contributions of one user, newest first.
func (r *Repository) ListContributionsByUser(ctx context.Context, userID string) ([]models.FramerContribution, error) {
	list := []models.FramerContribution{}
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+contributionColumns+` FROM framer_contributions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	return list, err
}

// ListContributions returns contributions, newest first. An empty status
// lists all of them.
func (r *Repository) ListContributions(ctx context.Context, status models.ContributionStatus) ([]models.FramerContribution, error) {
	list := []models.FramerContribution{}
	query := `SELECT ` + contributionColumns + ` FROM framer_contributions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	err := r.db.SelectContext(ctx, &list, query+` ORDER BY created_at DESC`, args...)
	return list, err
}

// ApproveContribution marks a pending contribution approved and publishes it
// as a frame image in one transaction. The stored object moves to the new
// frame. It returns ErrNotPending if the contribution was already reviewed.
func (r *Repository) ApproveContribution(ctx context.Context, id, reviewerID string, now time.Time) (*models.Framer, error) {
	var framer *models.Framer
	err := r.inTx(ctx, func(q database.Querier) error {
		c, err := reviewContribution(ctx, q, id, models.ContributionApproved, reviewerID, now)
		if err != nil {
			return err
		}

		framer = &models.Framer{
			ID:        uuid.NewString(),
			Name:      c.Name,
			ImageURL:  c.ImageURL,
			ObjectKey: c.ObjectKey,
			Layout:    c.Layout,
			CreatedAt: utc(now),
		}
		if err := insertFramer(ctx, q, framer); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `UPDATE framer_contributions SET object_key = NULL WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return framer, nil
}

// RejectContribution marks a pending contribution rejected. It returns
// ErrNotPending if the contribution was already reviewed.
func (r *Repository) RejectContribution(ctx context.Context, id, reviewerID string, now time.Time) (*models.FramerContribution, error) {
	var c *models.FramerContribution
	err := r.inTx(ctx, func(q database.Querier) error {
		var err error
		c, err = reviewContribution(ctx, q, id, models.ContributionRejected, reviewerID, now)
		return err
	})
	return c, err
}

func reviewContribution(
	ctx context.Context,
	q database.Querier,
	id string,
	status models.ContributionStatus,
	reviewerID string,
	now time.Time,
) (*models.FramerContribution, error) {
	c, err := getContribution(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if !c.IsPending() {
		return nil, ErrNotPending
	}

	reviewedAt := utc(now)
	_, err = q.ExecContext(ctx,
		`UPDATE framer_contributions SET status = ?, reviewed_at = ?, reviewed_by = ? WHERE id = ? AND status = ?`,
		status, reviewedAt, reviewerID, id, models.ContributionPending)
	if err != nil {
		return nil, wrapError(err)
	}

	c.Status = status
	c.ReviewedAt = &reviewedAt
	c.ReviewedBy = &reviewerID
	return c, nil
}
