package projstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism-data/prism/internal/projection"
	"github.com/prism-data/prism/internal/timeutil"
)

func openTestStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store, err := Open(filepath.Join(t.TempDir(), "prism.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, clock
}

func testDataset(key projection.Key) *projection.Dataset {
	return &projection.Dataset{
		Key:        key,
		Resolution: 3,
		Depth:      6,
		Seed:       42,
		Axes:       [][]float64{{0, 5, 10}},
		Cells: []projection.Cell{
			{MinImpl: 1.2, FracPlausible: 0.5},
			{MinImpl: 3.9, FracPlausible: 0},
			{MinImpl: 4.4, FracPlausible: 0},
		},
		FirstCut: 4.0,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, clock := openTestStore(t)
	key := projection.NewKey(1, projection.Type2D, "A")

	exists, err := store.Exists(key)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = store.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)

	ds := testDataset(key)
	require.NoError(t, store.Put(ds))
	assert.Equal(t, clock.Now(), ds.CreatedAt, "Put stamps CreatedAt from the clock")

	exists, err = store.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.Get(key)
	require.NoError(t, err)
	if diff := cmp.Diff(ds, got); diff != "" {
		t.Errorf("stored dataset mismatch (-want +got):\n%s", diff)
	}
}

func TestStorePutReplaces(t *testing.T) {
	store, _ := openTestStore(t)
	key := projection.NewKey(2, projection.Type3D, "A", "B")

	require.NoError(t, store.Put(testDataset(key)))

	replacement := testDataset(key)
	replacement.Seed = 7
	replacement.Cells[0].MinImpl = 9.9
	require.NoError(t, store.Put(replacement))

	got, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Seed)
	assert.Equal(t, 9.9, got.Cells[0].MinImpl)

	records, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, records, 1, "replace must not leave duplicate rows")
}

func TestGetOrComputeCachesAndForces(t *testing.T) {
	store, _ := openTestStore(t)
	key := projection.NewKey(1, projection.Type2D, "B")

	computes := 0
	compute := func(ctx context.Context, k projection.Key) (*projection.Dataset, error) {
		computes++
		ds := testDataset(k)
		ds.Seed = int64(100 + computes)
		return ds, nil
	}

	first, hit, err := store.GetOrCompute(context.Background(), key, false, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, computes)

	// Second request is served from the store without recomputation, with
	// identical contents.
	second, hit, err := store.GetOrCompute(context.Background(), key, false, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, computes)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cache hit returned different dataset (-first +second):\n%s", diff)
	}

	// Force discards the stored row and recomputes.
	third, hit, err := store.GetOrCompute(context.Background(), key, true, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, computes)
	assert.Equal(t, int64(102), third.Seed)
}

func TestGetOrComputeError(t *testing.T) {
	store, _ := openTestStore(t)
	key := projection.NewKey(1, projection.Type2D, "C")

	wantErr := errors.New("emulator unavailable")
	_, _, err := store.GetOrCompute(context.Background(), key, false,
		func(context.Context, projection.Key) (*projection.Dataset, error) {
			return nil, wantErr
		})
	assert.ErrorIs(t, err, wantErr)

	// A failed computation must not leave a row behind.
	exists, err := store.Exists(key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFigureLifecycle(t *testing.T) {
	store, _ := openTestStore(t)
	key := projection.NewKey(1, projection.Type2D, "A")

	// No row yet: recording a figure fails.
	assert.ErrorIs(t, store.RecordFigure(key, "x.png"), ErrNotFound)

	require.NoError(t, store.Put(testDataset(key)))

	figPath := filepath.Join(t.TempDir(), "proj_1_cube_(A).png")
	require.NoError(t, os.WriteFile(figPath, []byte("png"), 0o644))
	require.NoError(t, store.RecordFigure(key, figPath))

	got, err := store.FigurePath(key)
	require.NoError(t, err)
	assert.Equal(t, figPath, got)

	// Delete removes both the row and the artifact.
	require.NoError(t, store.Delete(key))
	_, err = store.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(figPath)
	assert.True(t, os.IsNotExist(err), "figure artifact should be removed")

	// Deleting an absent key is a no-op.
	require.NoError(t, store.Delete(key))
}

func TestForceRemovesStaleFigure(t *testing.T) {
	store, _ := openTestStore(t)
	key := projection.NewKey(1, projection.Type3D, "A", "B")

	require.NoError(t, store.Put(testDataset(key)))
	figPath := filepath.Join(t.TempDir(), "proj_1_hcube_(A-B).png")
	require.NoError(t, os.WriteFile(figPath, []byte("png"), 0o644))
	require.NoError(t, store.RecordFigure(key, figPath))

	_, hit, err := store.GetOrCompute(context.Background(), key, true,
		func(_ context.Context, k projection.Key) (*projection.Dataset, error) {
			return testDataset(k), nil
		})
	require.NoError(t, err)
	assert.False(t, hit)
	_, err = os.Stat(figPath)
	assert.True(t, os.IsNotExist(err), "forced refresh should remove the stale figure")
}

func TestListFiltersByIteration(t *testing.T) {
	store, clock := openTestStore(t)

	keys := []projection.Key{
		projection.NewKey(1, projection.Type2D, "A"),
		projection.NewKey(1, projection.Type3D, "A", "B"),
		projection.NewKey(2, projection.Type2D, "A"),
	}
	for _, key := range keys {
		require.NoError(t, store.Put(testDataset(key)))
		clock.Advance(time.Minute)
	}

	all, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	iter1, err := store.List(1)
	require.NoError(t, err)
	require.Len(t, iter1, 2)
	for _, r := range iter1 {
		assert.Equal(t, 1, r.Key.Iteration)
		assert.NotEmpty(t, r.ID)
	}
	assert.Equal(t, []string{"A", "B"}, iter1[1].Key.Params)
}

func TestMigrateVersion(t *testing.T) {
	store, _ := openTestStore(t)
	version, dirty, err := store.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}
