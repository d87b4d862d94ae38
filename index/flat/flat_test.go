package flat

import (
	"bytes"
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proxima/index"
)

func buildTestIndex(t *testing.T) *Flat {
	t.Helper()

	ds, err := index.NewDataset([]float32{
		0, 0,
		1, 0,
		0, 1,
		5, 5,
	}, 2)
	require.NoError(t, err)

	f := New()
	require.NoError(t, f.Build(context.Background(), ds))
	return f
}

func TestFlatBuild(t *testing.T) {
	t.Run("rejects empty dataset", func(t *testing.T) {
		ds, err := index.NewDataset(nil, 0)
		require.NoError(t, err)

		err = New().Build(context.Background(), ds)
		assert.ErrorIs(t, err, index.ErrEmptyDataset)
	})

	t.Run("size and dimension after build", func(t *testing.T) {
		f := buildTestIndex(t)
		assert.Equal(t, 4, f.Size())
		assert.Equal(t, 2, f.Dimension())
	})
}

func TestFlatKNNSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nearest first", func(t *testing.T) {
		f := buildTestIndex(t)

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, 0, results[0].Index)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
		assert.InDelta(t, 1.0, results[1].Distance, 1e-6)
	})

	t.Run("ties break by ascending index", func(t *testing.T) {
		f := buildTestIndex(t)

		// Points 1 and 2 are both at distance 1 from the origin.
		results, err := f.KNNSearch(ctx, []float32{0, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, 1, results[1].Index)
		assert.Equal(t, 2, results[2].Index)
	})

	t.Run("k larger than dataset returns all points", func(t *testing.T) {
		f := buildTestIndex(t)

		results, err := f.KNNSearch(ctx, []float32{0, 0}, 100, nil)
		require.NoError(t, err)
		assert.Len(t, results, 4)
	})

	t.Run("rejects non-positive k", func(t *testing.T) {
		f := buildTestIndex(t)

		_, err := f.KNNSearch(ctx, []float32{0, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("rejects wrong query dimension", func(t *testing.T) {
		f := buildTestIndex(t)

		_, err := f.KNNSearch(ctx, []float32{0, 0, 0}, 1, nil)
		var dm *index.ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 2, dm.Expected)
		assert.Equal(t, 3, dm.Actual)
	})

	t.Run("not built", func(t *testing.T) {
		_, err := New().KNNSearch(ctx, []float32{0, 0}, 1, nil)
		assert.ErrorIs(t, err, index.ErrNotBuilt)
	})

	t.Run("allow-list filters results", func(t *testing.T) {
		f := buildTestIndex(t)

		allow := roaring.BitmapOf(2, 3)
		results, err := f.KNNSearch(ctx, []float32{0, 0}, 4, &index.SearchOptions{Allow: allow})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 2, results[0].Index)
		assert.Equal(t, 3, results[1].Index)
	})
}

func TestFlatRadiusSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns all points within radius", func(t *testing.T) {
		f := buildTestIndex(t)

		results, err := f.RadiusSearch(ctx, []float32{0, 0}, 1.5, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, 0, results[0].Index)
		assert.Equal(t, 1, results[1].Index)
		assert.Equal(t, 2, results[2].Index)
	})

	t.Run("radius zero matches coincident points only", func(t *testing.T) {
		f := buildTestIndex(t)

		results, err := f.RadiusSearch(ctx, []float32{1, 0}, 0, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 1, results[0].Index)
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		f := buildTestIndex(t)

		results, err := f.RadiusSearch(ctx, []float32{0, 0}, 1.0, nil)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("rejects negative radius", func(t *testing.T) {
		f := buildTestIndex(t)

		_, err := f.RadiusSearch(ctx, []float32{0, 0}, -1, nil)
		assert.ErrorIs(t, err, index.ErrNegativeRadius)
	})

	t.Run("no matches yields empty result", func(t *testing.T) {
		f := buildTestIndex(t)

		results, err := f.RadiusSearch(ctx, []float32{100, 100}, 1, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestFlatPersistRestore(t *testing.T) {
	f := buildTestIndex(t)

	var buf bytes.Buffer
	require.NoError(t, f.Persist(&buf))
	assert.Zero(t, buf.Len(), "flat backend has no payload")

	ds, err := index.NewDataset([]float32{0, 0, 1, 0, 0, 1, 5, 5}, 2)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Restore(ds, &buf))

	results, err := restored.KNNSearch(context.Background(), []float32{5, 5}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Index)
}
