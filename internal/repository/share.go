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

const shareColumns = `id, resource_id, token, expires_at, created_at`

// GetOrCreateShareToken returns the newest share token for resourceID that is
// still valid at now, or stores a new one built from newToken and ttl. The
// lookup and insert share a transaction. created reports whether a new token
// was stored.
func (r *Repository) GetOrCreateShareToken(
	ctx context.Context,
	resourceID string,
	now time.Time,
	ttl time.Duration,
	newToken func() (string, error),
) (share *models.ShareToken, created bool, err error) {
	err = r.inTx(ctx, func(q database.Querier) error {
		existing, err := getShare(ctx, q,
			`SELECT `+shareColumns+` FROM share_tokens
			 WHERE resource_id = ? AND expires_at > ?
			 ORDER BY created_at DESC LIMIT 1`,
			resourceID, utc(now))
		if err == nil {
			share = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		token, err := newToken()
		if err != nil {
			return err
		}
		share = &models.ShareToken{
			ID:         uuid.NewString(),
			ResourceID: resourceID,
			Token:      token,
			ExpiresAt:  utc(now.Add(ttl)),
			CreatedAt:  utc(now),
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO share_tokens (`+shareColumns+`) VALUES (?, ?, ?, ?, ?)`,
			share.ID, share.ResourceID, share.Token, share.ExpiresAt, share.CreatedAt)
		if err != nil {
			return wrapError(err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return share, created, nil
}

// GetShareToken retrieves a share token by its token string, expired or not.
func (r *Repository) GetShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	return getShare(ctx, r.db, `SELECT `+shareColumns+` FROM share_tokens WHERE token = ?`, token)
}

// GetLatestShareToken retrieves the newest share token for a resource.
func (r *Repository) GetLatestShareToken(ctx context.Context, resourceID string) (*models.ShareToken, error) {
	return getShare(ctx, r.db,
		`SELECT `+shareColumns+` FROM share_tokens WHERE resource_id = ? ORDER BY created_at DESC LIMIT 1`,
		resourceID)
}

func getShare(ctx context.Context, q database.Querier, query string, args ...any) (*models.ShareToken, error) {
	var share models.ShareToken
	if err := q.GetContext(ctx, &share, query, args...); err != nil {
		return nil, wrapError(err)
	}
	return &share, nil
}

// DeleteExpiredShareTokens removes tokens that expired at or before now.
func (r *Repository) DeleteExpiredShareTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM share_tokens WHERE expires_at <= ?`, utc(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
