// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/database"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, display_name, avatar_url, email_verified,
	provider, provider_id, role, created_at, updated_at`

var _ identity.Store = (*Repository)(nil)

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getUser(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUserByEmail(ctx, r.db, email)
}

// GetUserByProvider retrieves the user bound to a federated identity.
func (r *Repository) GetUserByProvider(ctx context.Context, provider models.Provider, providerID string) (*models.User, error) {
	return getUserByProvider(ctx, r.db, provider, providerID)
}

func getUser(ctx context.Context, q database.Querier, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := q.GetContext(ctx, &user, query, args...); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

func getUserByEmail(ctx context.Context, q database.Querier, email string) (*models.User, error) {
	return getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE email = ?`, models.NormalizeEmail(email))
}

func getUserByProvider(ctx context.Context, q database.Querier, provider models.Provider, providerID string) (*models.User, error) {
	return getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_id = ?`, provider, providerID)
}

// CreatePasswordUser inserts an unverified password account. It returns
// ErrConflict if the email is taken.
func (r *Repository) CreatePasswordUser(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	now := utc(time.Now())
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        models.NormalizeEmail(email),
		PasswordHash: &passwordHash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if displayName != "" {
		user.DisplayName = &displayName
	}

	if err := insertUser(ctx, r.db, user); err != nil {
		return nil, err
	}
	return user, nil
}

func insertUser(ctx context.Context, q database.Querier, u *models.User) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL, u.EmailVerified,
		u.Provider, u.ProviderID, u.Role, utc(u.CreatedAt), utc(u.UpdatedAt))
	return wrapError(err)
}

func updateUser(ctx context.Context, q database.Querier, u *models.User) error {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET email = ?, password_hash = ?, display_name = ?, avatar_url = ?,
			email_verified = ?, provider = ?, provider_id = ?, role = ?, updated_at = ?
		 WHERE id = ?`,
		u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL, u.EmailVerified,
		u.Provider, u.ProviderID, u.Role, utc(u.UpdatedAt), u.ID)
	if err != nil {
		return wrapError(err)
	}
	return expectOne(res)
}

// CreateOrUpdateFederatedUser applies a federated sign-in in one transaction:
// it loads the accounts matching the provider identity and the email, lets
// identity.Decide pick the outcome and persists it. A concurrent sign-in that
// wins the insert race makes this call retry, so it observes the winner's row.
func (r *Repository) CreateOrUpdateFederatedUser(ctx context.Context, a identity.Assertion) (*models.User, error) {
	const attempts = 3

	var (
		user *models.User
		err  error
	)
	for range attempts {
		user, err = r.applyFederated(ctx, a)
		if !errors.Is(err, ErrConflict) {
			return user, err
		}
	}
	return nil, err
}

func (r *Repository) applyFederated(ctx context.Context, a identity.Assertion) (*models.User, error) {
	var user *models.User
	err := r.inTx(ctx, func(q database.Querier) error {
		byProvider, err := getUserByProvider(ctx, q, a.Provider, a.ProviderID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		var byEmail *models.User
		if byProvider == nil {
			byEmail, err = getUserByEmail(ctx, q, a.Email)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		plan := identity.Decide(byProvider, byEmail, a, time.Now())
		if plan.Kind == identity.PlanCreate {
			err = insertUser(ctx, q, plan.User)
		} else {
			err = updateUser(ctx, q, plan.User)
		}
		if err != nil {
			return fmt.Errorf("%s federated user: %w", plan.Kind, err)
		}
		user = plan.User
		return nil
	})
	return user, err
}

// MarkEmailVerified sets email_verified for the account holding email.
func (r *Repository) MarkEmailVerified(ctx context.Context, email string) error {
	return markEmailVerified(ctx, r.db, email)
}

func markEmailVerified(ctx context.Context, q database.Querier, email string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE email = ?`,
		utc(time.Now()), models.NormalizeEmail(email))
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UpdateUserRole changes the role of a user.
func (r *Repository) UpdateUserRole(ctx context.Context, id string, role models.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, utc(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteUser removes a user. Owned photos keep existing with a NULL owner.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListUsers returns all users, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

func expectOne(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
