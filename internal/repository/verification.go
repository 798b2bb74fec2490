// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/database"
	"codeberg.org/oliverandrich/photobooth/internal/models"
)

const challengeColumns = `id, email, code_hash, link_token_hash, code_expires_at, link_expires_at, used_at, created_at`

// CreateChallenge stores a new verification challenge.
func (r *Repository) CreateChallenge(ctx context.Context, c *models.VerificationChallenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`,
		c.ID, models.NormalizeEmail(c.Email), c.CodeHash, c.LinkTokenHash,
		utc(c.CodeExpiresAt), utc(c.LinkExpiresAt), utc(c.CreatedAt))
	return wrapError(err)
}

// GetChallengeByLinkHash retrieves a challenge by its link token hash.
func (r *Repository) GetChallengeByLinkHash(ctx context.Context, linkTokenHash string) (*models.VerificationChallenge, error) {
	var c models.VerificationChallenge
	err := r.db.GetContext(ctx, &c,
		`SELECT `+challengeColumns+` FROM verification_challenges WHERE link_token_hash = ?`, linkTokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// ListChallenges returns the challenges issued for email, newest first.
func (r *Repository) ListChallenges(ctx context.Context, email string) ([]models.VerificationChallenge, error) {
	var challenges []models.VerificationChallenge
	err := r.db.SelectContext(ctx, &challenges,
		`SELECT `+challengeColumns+` FROM verification_challenges WHERE email = ? ORDER BY created_at DESC`,
		models.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return challenges, nil
}

// ConsumeChallengeByCode redeems the newest unused, unexpired challenge
// matching (email, codeHash) and marks the account verified, in one
// transaction. It returns ErrNotFound when no challenge qualifies.
func (r *Repository) ConsumeChallengeByCode(ctx context.Context, email, codeHash string, now time.Time) (*models.User, error) {
	return r.consumeChallenge(ctx, now,
		`SELECT id, email FROM verification_challenges
		 WHERE email = ? AND code_hash = ? AND used_at IS NULL AND code_expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		models.NormalizeEmail(email), codeHash, utc(now))
}

// ConsumeChallengeByLink redeems the unused, unexpired challenge holding
// linkTokenHash and marks the account verified, in one transaction.
func (r *Repository) ConsumeChallengeByLink(ctx context.Context, linkTokenHash string, now time.Time) (*models.User, error) {
	return r.consumeChallenge(ctx, now,
		`SELECT id, email FROM verification_challenges
		 WHERE link_token_hash = ? AND used_at IS NULL AND link_expires_at > ?`,
		linkTokenHash, utc(now))
}

func (r *Repository) consumeChallenge(ctx context.Context, now time.Time, query string, args ...any) (*models.User, error) {
	var user *models.User
	err := r.inTx(ctx, func(q database.Querier) error {
		var target struct {
			ID    string `db:"id"`
			Email string `db:"email"`
		}
		if err := q.GetContext(ctx, &target, query, args...); err != nil {
			return wrapError(err)
		}

		res, err := q.ExecContext(ctx,
			`UPDATE verification_challenges SET used_at = ? WHERE id = ? AND used_at IS NULL`,
			utc(now), target.ID)
		if err != nil {
			return err
		}
		if err := expectOne(res); err != nil {
			return err
		}

		if err := markEmailVerified(ctx, q, target.Email); err != nil {
			return err
		}

		user, err = getUserByEmail(ctx, q, target.Email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteStaleChallenges removes challenges that were consumed or whose link
// expired before cutoff. It returns the number of rows removed.
func (r *Repository) DeleteStaleChallenges(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_challenges WHERE used_at < ? OR link_expires_at < ?`,
		utc(cutoff), utc(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
