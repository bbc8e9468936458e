// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package tombstonetest contains the tests every writable tombstone store must pass.
package tombstonetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tubbz-alt/covid19-app-system-public/internal/testcontext"
	"github.com/Tubbz-alt/covid19-app-system-public/submission"
)

// Store is a writable tombstone store.
type Store interface {
	Add(ctx context.Context, ids ...string) error
	Remove(ctx context.Context, ids ...string) error
	Load(ctx context.Context) (submission.TombstoneSet, error)
}

// RunTests runs common tombstone store tests. The store must start empty.
func RunTests(t *testing.T, store Store) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("Idempotent", func(t *testing.T) { testIdempotent(t, store) })
	t.Run("Parallel", func(t *testing.T) { testParallel(t, store) })
}

func load(ctx context.Context, t *testing.T, store Store) submission.TombstoneSet {
	t.Helper()
	set, err := store.Load(ctx)
	require.NoError(t, err)
	return set
}

func testCRUD(t *testing.T, store Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	require.Empty(t, load(ctx, t, store))

	require.NoError(t, store.Add(ctx, "/mobile/a", "/mobile/b"))
	require.Equal(t, submission.NewTombstoneSet("/mobile/a", "/mobile/b"), load(ctx, t, store))

	require.NoError(t, store.Remove(ctx, "/mobile/a"))
	set := load(ctx, t, store)
	require.False(t, set.Contains("/mobile/a"))
	require.True(t, set.Contains("/mobile/b"))

	require.NoError(t, store.Remove(ctx, "/mobile/b"))
	require.Empty(t, load(ctx, t, store))
}

func testIdempotent(t *testing.T, store Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	require.NoError(t, store.Add(ctx, "/mobile/a"))
	require.NoError(t, store.Add(ctx, "/mobile/a"))
	require.Len(t, load(ctx, t, store), 1)

	require.NoError(t, store.Remove(ctx, "/mobile/a"))
	require.NoError(t, store.Remove(ctx, "/mobile/a", "/mobile/missing"))
	require.Empty(t, load(ctx, t, store))
}

func testParallel(t *testing.T, store Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	const workers, perWorker = 8, 25

	var ids []string
	for w := 0; w < workers; w++ {
		w := w
		batch := make([]string, 0, perWorker)
		for i := 0; i < perWorker; i++ {
			batch = append(batch, fmt.Sprintf("/parallel/%d/%d", w, i))
		}
		ids = append(ids, batch...)
		ctx.Go(func() error {
			for _, id := range batch {
				if err := store.Add(ctx, id); err != nil {
					return err
				}
			}
			return nil
		})
	}
	ctx.Wait()

	set := load(ctx, t, store)
	require.Len(t, set, workers*perWorker)
	for _, id := range ids {
		require.True(t, set.Contains(id), id)
	}

	require.NoError(t, store.Remove(ctx, ids...))
	require.Empty(t, load(ctx, t, store))
}
