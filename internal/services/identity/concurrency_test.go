package identity_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorekeep/scorekeep/internal/dependencies/clock"
	"github.com/scorekeep/scorekeep/internal/dependencies/idgen"
	"github.com/scorekeep/scorekeep/internal/model"
	"github.com/scorekeep/scorekeep/internal/services/games"
	"github.com/scorekeep/scorekeep/internal/services/identity"
	"github.com/scorekeep/scorekeep/internal/services/propagation"
	"github.com/scorekeep/scorekeep/internal/storage"
	"github.com/scorekeep/scorekeep/internal/storage/memory"
	"github.com/scorekeep/scorekeep/internal/testutil"
)

// newRacingService builds a service over the given backend with the real
// clock and ID generator, so it is safe to call from many goroutines
func newRacingService(store storage.Storage) *identity.Service {
	logger := testutil.NopLogger()
	clk := clock.New()
	gen := idgen.New()
	collections := make([]propagation.Collection, 0, len(model.Collections()))
	for _, name := range model.Collections() {
		collections = append(collections, games.NewCollection(name, store, clk))
	}
	propagator := propagation.New(store, clk, gen, logger, collections...)
	return identity.New(store, propagator, clk, gen, logger)
}

func TestConcurrentResolveCreatesOneIdentity(t *testing.T) {
	svc := newRacingService(memory.New())
	ctx := context.Background()

	const n = 16
	ids := make([]model.IdentityID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ident, err := svc.Resolve(ctx, "Nova", identity.ResolveOptions{})
			if err == nil {
				ids[i] = ident.ID
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	// Race losers must re-read the winner, never error or duplicate
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	result, err := svc.Search(ctx, "nova", identity.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestConcurrentClaimOfMatchingGuest(t *testing.T) {
	store := memory.New()
	svc := newRacingService(store)
	ctx := context.Background()

	guest, err := svc.Resolve(ctx, "Alice", identity.ResolveOptions{})
	require.NoError(t, err)
	user := &model.User{ID: "user-1", Username: "Alice"}
	require.NoError(t, store.CreateUser(ctx, user))

	const n = 8
	results := make([]*identity.ClaimResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ClaimOnRegistration(ctx, user)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, guest.ID, results[i].Identity.ID)
	}

	// Exactly one non-deleted identity carries the user ID
	owner, err := store.FindIdentityByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, owner.ID)

	claimed := true
	result, err := store.SearchIdentities(ctx, storage.SearchFilter{Claimed: &claimed, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestConcurrentClaimWithoutMatchingGuest(t *testing.T) {
	store := memory.New()
	svc := newRacingService(store)
	ctx := context.Background()

	user := &model.User{ID: "user-1", Username: "Nova"}
	require.NoError(t, store.CreateUser(ctx, user))

	const n = 8
	results := make([]*identity.ClaimResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ClaimOnRegistration(ctx, user)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Identity.ID, results[i].Identity.ID)
		if results[i].Created {
			created++
		}
	}
	// Only the creation-race winner reports a fresh identity
	assert.Equal(t, 1, created)

	owner, err := store.FindIdentityByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, results[0].Identity.ID, owner.ID)
}
