// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChallenge(t *testing.T, repo *repository.Repository, email, codeHash, linkHash string, issued time.Time) *models.VerificationChallenge {
	t.Helper()
	c := &models.VerificationChallenge{
		ID:            uuid.NewString(),
		Email:         email,
		CodeHash:      codeHash,
		LinkTokenHash: linkHash,
		CodeExpiresAt: issued.Add(15 * time.Minute),
		LinkExpiresAt: issued.Add(24 * time.Hour),
		CreatedAt:     issued,
	}
	require.NoError(t, repo.CreateChallenge(context.Background(), c))
	return c
}

func TestCreateChallenge(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	now := time.Now()

	created := newChallenge(t, repo, "Alice@example.com", "code-hash", "link-hash", now)

	stored, err := repo.GetChallengeByLinkHash(context.Background(), "link-hash")
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.False(t, stored.IsUsed())
	assert.WithinDuration(t, created.CodeExpiresAt, stored.CodeExpiresAt, time.Millisecond)
	assert.WithinDuration(t, created.LinkExpiresAt, stored.LinkExpiresAt, time.Millisecond)
}

func TestCreateChallenge_DuplicateLinkHash(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	newChallenge(t, repo, "alice@example.com", "c1", "link-hash", time.Now())

	err := repo.CreateChallenge(context.Background(), &models.VerificationChallenge{
		ID: uuid.NewString(), Email: "bob@example.com", CodeHash: "c2", LinkTokenHash: "link-hash",
		CodeExpiresAt: time.Now(), LinkExpiresAt: time.Now(), CreatedAt: time.Now(),
	})

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestConsumeChallengeByCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)
	now := time.Now()
	newChallenge(t, repo, "alice@example.com", "code-hash", "link-hash", now)

	user, err := repo.ConsumeChallengeByCode(ctx, "alice@example.com", "code-hash", now)

	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	stored, err := repo.GetChallengeByLinkHash(ctx, "link-hash")
	require.NoError(t, err)
	assert.True(t, stored.IsUsed())
}

func TestConsumeChallengeByCode_OnlyOnce(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)
	now := time.Now()
	newChallenge(t, repo, "alice@example.com", "code-hash", "link-hash", now)

	_, err := repo.ConsumeChallengeByCode(ctx, "alice@example.com", "code-hash", now)
	require.NoError(t, err)

	_, err = repo.ConsumeChallengeByCode(ctx, "alice@example.com", "code-hash", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.ConsumeChallengeByLink(ctx, "link-hash", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeChallengeByCode_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)
	issued := time.Now().Add(-16 * time.Minute)
	newChallenge(t, repo, "alice@example.com", "code-hash", "link-hash", issued)

	_, err := repo.ConsumeChallengeByCode(ctx, "alice@example.com", "code-hash", time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// The link outlives the code.
	user, err := repo.ConsumeChallengeByLink(ctx, "link-hash", time.Now())
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
}

func TestConsumeChallengeByLink_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)
	issued := time.Now().Add(-25 * time.Hour)
	newChallenge(t, repo, "alice@example.com", "code-hash", "link-hash", issued)

	_, err := repo.ConsumeChallengeByLink(context.Background(), "link-hash", time.Now())

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeChallenge_SiblingsStayValid(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)
	now := time.Now()
	newChallenge(t, repo, "alice@example.com", "code-1", "link-1", now.Add(-time.Minute))
	newChallenge(t, repo, "alice@example.com", "code-2", "link-2", now)

	_, err := repo.ConsumeChallengeByCode(ctx, "alice@example.com", "code-2", now)
	require.NoError(t, err)

	_, err = repo.ConsumeChallengeByLink(ctx, "link-1", now)
	assert.NoError(t, err)
}

func TestConsumeChallenge_UnknownUserLeavesChallenge(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	newChallenge(t, repo, "ghost@example.com", "code-hash", "link-hash", now)

	_, err := repo.ConsumeChallengeByLink(ctx, "link-hash", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	stored, err := repo.GetChallengeByLinkHash(ctx, "link-hash")
	require.NoError(t, err)
	assert.False(t, stored.IsUsed(), "consumption must roll back with the failed verified-flag update")
}

func TestConsumeChallenge_Concurrent(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)
	now := time.Now()
	newChallenge(t, repo, "alice@example.com", "code-hash", "link-hash", now)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = repo.ConsumeChallengeByCode(ctx, "alice@example.com", "code-hash", now)
			} else {
				_, err = repo.ConsumeChallengeByLink(ctx, "link-hash", now)
			}
			if err == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestListChallenges(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	now := time.Now()
	newChallenge(t, repo, "alice@example.com", "c1", "l1", now.Add(-time.Minute))
	newChallenge(t, repo, "alice@example.com", "c2", "l2", now)
	newChallenge(t, repo, "bob@example.com", "c3", "l3", now)

	challenges, err := repo.ListChallenges(context.Background(), "ALICE@example.com")

	require.NoError(t, err)
	require.Len(t, challenges, 2)
	assert.Equal(t, "c2", challenges[0].CodeHash)
}

func TestDeleteStaleChallenges(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "alice@example.com", "secret1", false)
	now := time.Now()
	newChallenge(t, repo, "alice@example.com", "old", "old-link", now.Add(-72*time.Hour))
	newChallenge(t, repo, "alice@example.com", "used", "used-link", now.Add(-48*time.Hour))
	newChallenge(t, repo, "alice@example.com", "fresh", "fresh-link", now)
	_, err := repo.ConsumeChallengeByLink(ctx, "used-link", now.Add(-47*time.Hour))
	require.NoError(t, err)

	deleted, err := repo.DeleteStaleChallenges(ctx, now.Add(-24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	_, err = repo.GetChallengeByLinkHash(ctx, "fresh-link")
	assert.NoError(t, err)
}
