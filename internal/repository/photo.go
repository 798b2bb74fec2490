// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/photobooth/internal/database"
	"codeberg.org/oliverandrich/photobooth/internal/models"
)

const photoColumns = `id, user_id, url, object_key, content_type, size_bytes, created_at`

// PhotoWithOwner is a photo joined with its owner's public profile.
type PhotoWithOwner struct { //nolint:govet // fieldalignment: readability over optimization
	models.Photo
	OwnerEmail     *string `db:"owner_email"`
	OwnerName      *string `db:"owner_name"`
	OwnerAvatarURL *string `db:"owner_avatar_url"`
}

const photoWithOwnerQuery = `SELECT p.id, p.user_id, p.url, p.object_key, p.content_type, p.size_bytes, p.created_at,
	u.email AS owner_email, u.display_name AS owner_name, u.avatar_url AS owner_avatar_url
	FROM photos p LEFT JOIN users u ON u.id = p.user_id`

// CreatePhoto stores photo metadata.
func (r *Repository) CreatePhoto(ctx context.Context, p *models.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.URL, p.ObjectKey, p.ContentType, p.SizeBytes, utc(p.CreatedAt))
	return wrapError(err)
}

// GetPhotoByID retrieves a photo by ID.
func (r *Repository) GetPhotoByID(ctx context.Context, id string) (*models.Photo, error) {
	var photo models.Photo
	if err := r.db.GetContext(ctx, &photo, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &photo, nil
}

// GetPhotoWithOwner retrieves a photo and its owner's profile.
func (r *Repository) GetPhotoWithOwner(ctx context.Context, id string) (*PhotoWithOwner, error) {
	var photo PhotoWithOwner
	if err := r.db.GetContext(ctx, &photo, photoWithOwnerQuery+` WHERE p.id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &photo, nil
}

// ListPhotosByUser returns the photos of one user, newest first.
func (r *Repository) ListPhotosByUser(ctx context.Context, userID string) ([]PhotoWithOwner, error) {
	return listPhotos(ctx, r.db, photoWithOwnerQuery+` WHERE p.user_id = ? ORDER BY p.created_at DESC`, userID)
}

// ListPhotos returns every photo, newest first.
func (r *Repository) ListPhotos(ctx context.Context) ([]PhotoWithOwner, error) {
	return listPhotos(ctx, r.db, photoWithOwnerQuery+` ORDER BY p.created_at DESC`)
}

func listPhotos(ctx context.Context, q database.Querier, query string, args ...any) ([]PhotoWithOwner, error) {
	photos := []PhotoWithOwner{}
	if err := q.SelectContext(ctx, &photos, query, args...); err != nil {
		return nil, err
	}
	return photos, nil
}

// CountPhotosByUser returns how many photos a user owns.
func (r *Repository) CountPhotosByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM photos WHERE user_id = ?`, userID)
	return count, err
}

// DeletePhoto removes a photo together with its share tokens.
func (r *Repository) DeletePhoto(ctx context.Context, id string) error {
	return r.inTx(ctx, func(q database.Querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM share_tokens WHERE resource_id = ?`, id); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return expectOne(res)
	})
}
