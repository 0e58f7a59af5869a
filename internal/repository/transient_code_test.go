// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/twofactor/internal/models"
	"codeberg.org/oliverandrich/twofactor/internal/testutil"
)

func TestConsumeTransientCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com", "pw")

	expires := time.Now().Add(5 * time.Minute)
	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", expires, "10.0.0.1"))

	ok, err := repo.ConsumeTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	// Same code again: consumed, no replay inside the expiry window.
	ok, err = repo.ConsumeTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeTransientCode_WrongHash(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com", "pw")

	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now().Add(time.Minute), ""))

	ok, err := repo.ConsumeTransientCode(ctx, user.ID, models.MethodEmail, "other", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeTransientCode_Expired(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com", "pw")

	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now().Add(-time.Minute), ""))

	ok, err := repo.ConsumeTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeTransientCode_MethodScoped(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com", "pw")

	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now().Add(time.Minute), ""))

	// A relay submission cannot spend an email code.
	ok, err := repo.ConsumeTransientCode(ctx, user.ID, models.MethodRelay, "hash-1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeTransientCode_Concurrent(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com", "pw")

	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now().Add(time.Minute), ""))

	const attempts = 8
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConsumeTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now())
			require.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent submission may spend the code")
}

func TestInvalidateOutstandingCodes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com", "pw")

	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "hash-1", time.Now().Add(time.Minute), ""))
	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "hash-2", time.Now().Add(time.Minute), ""))

	require.NoError(t, repo.InvalidateOutstandingCodes(ctx, user.ID, models.MethodEmail, time.Now()))

	for _, hash := range []string{"hash-1", "hash-2"} {
		ok, err := repo.ConsumeTransientCode(ctx, user.ID, models.MethodEmail, hash, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestDeleteExpiredTransientCodes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com", "pw")

	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "expired", time.Now().Add(-time.Minute), ""))
	require.NoError(t, repo.CreateTransientCode(ctx, user.ID, models.MethodEmail, "live", time.Now().Add(time.Minute), ""))

	deleted, err := repo.DeleteExpiredTransientCodes(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	// The live code still spends.
	ok, err := repo.ConsumeTransientCode(ctx, user.ID, models.MethodEmail, "live", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}
