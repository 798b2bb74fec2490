// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"codeberg.org/oliverandrich/photobooth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePasswordUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user, err := repo.CreatePasswordUser(ctx, "  Alice@Example.com ", "hash", "Alice")

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.HasPassword())
	assert.False(t, user.EmailVerified)
	assert.Equal(t, models.RoleUser, user.Role)
	require.NotNil(t, user.DisplayName)
	assert.Equal(t, "Alice", *user.DisplayName)
	assert.NotZero(t, user.CreatedAt)
}

func TestCreatePasswordUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.CreatePasswordUser(ctx, "alice@example.com", "hash", "")
	require.NoError(t, err)

	_, err = repo.CreatePasswordUser(ctx, "ALICE@example.com", "hash", "")

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestGetUserByID(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)

	retrieved, err := repo.GetUserByID(ctx, created.ID)

	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)
	assert.Equal(t, created.Email, retrieved.Email)
	assert.Equal(t, *created.PasswordHash, *retrieved.PasswordHash)
	assert.Nil(t, retrieved.ProviderID)
	assert.Equal(t, models.ProviderNone, retrieved.Provider)
	assert.WithinDuration(t, created.CreatedAt, retrieved.CreatedAt, time.Millisecond)
}

func TestGetUserByID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByID(context.Background(), "missing")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	created := testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)

	user, err := repo.GetUserByEmail(context.Background(), "ALICE@Example.Com")

	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
}

func TestMarkEmailVerified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)

	require.NoError(t, repo.MarkEmailVerified(ctx, "Alice@example.com"))

	user, err := repo.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
}

func TestMarkEmailVerified_UnknownEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.MarkEmailVerified(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateUserRole(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "alice@example.com", "secret1", true)

	require.NoError(t, repo.UpdateUserRole(ctx, created.ID, models.RoleAdmin))

	user, err := repo.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	assert.ErrorIs(t, repo.UpdateUserRole(ctx, "missing", models.RoleAdmin), repository.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "alice@example.com", "secret1", true)

	require.NoError(t, repo.DeleteUser(ctx, created.ID))

	_, err := repo.GetUserByID(ctx, created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteUser(ctx, created.ID), repository.ErrNotFound)
}

func TestListAndCountUsers(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "a@example.com", "secret1", true)
	testutil.NewTestUser(t, repo, "b@example.com", "secret1", false)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCreatePasswordUser_Concurrent(t *testing.T) {
	_, repo := testutil.NewFileTestDB(t)
	ctx := context.Background()

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreatePasswordUser(ctx, "Alice@example.com", "hash", "")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrConflict)
	}
	assert.Equal(t, 1, created)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func googleAssertion(id, email string) identity.Assertion {
	return identity.Assertion{
		Provider:    models.ProviderGoogle,
		ProviderID:  id,
		Email:       email,
		DisplayName: "Alice G",
		AvatarURL:   "https://example.com/a.png",
	}
}

func TestCreateOrUpdateFederatedUser_Create(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user, err := repo.CreateOrUpdateFederatedUser(ctx, googleAssertion("g-1", "alice@example.com"))

	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
	assert.False(t, user.HasPassword())
	assert.Equal(t, models.ProviderGoogle, user.Provider)

	stored, err := repo.GetUserByProvider(ctx, models.ProviderGoogle, "g-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Equal(t, "Alice G", *stored.DisplayName)
}

func TestCreateOrUpdateFederatedUser_Idempotent(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	first, err := repo.CreateOrUpdateFederatedUser(ctx, googleAssertion("g-1", "alice@example.com"))
	require.NoError(t, err)
	second, err := repo.CreateOrUpdateFederatedUser(ctx, googleAssertion("g-1", "alice@example.com"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateOrUpdateFederatedUser_MergesPasswordAccount(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	existing := testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)

	user, err := repo.CreateOrUpdateFederatedUser(ctx, googleAssertion("g-1", "alice@example.com"))

	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)

	stored, err := repo.GetUserByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.True(t, stored.HasPassword())
	assert.Equal(t, *existing.PasswordHash, *stored.PasswordHash)
	assert.Equal(t, models.ProviderGoogle, stored.Provider)
	require.NotNil(t, stored.ProviderID)
	assert.Equal(t, "g-1", *stored.ProviderID)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateOrUpdateFederatedUser_Concurrent(t *testing.T) {
	_, repo := testutil.NewFileTestDB(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := repo.CreateOrUpdateFederatedUser(ctx, googleAssertion("g-1", "alice@example.com"))
			errs[i] = err
			if user != nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
