package hnsw

import (
	"bytes"
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/proxima/index"
)

func buildTestIndex(t *testing.T, precision float32) *HNSW {
	t.Helper()

	ds, err := index.NewDataset([]float32{
		0, 0,
		1, 0,
		0, 1,
		5, 5,
	}, 2)
	require.NoError(t, err)

	h := New(func(o *Options) {
		o.TargetPrecision = precision
	})
	require.NoError(t, h.Build(context.Background(), ds))
	return h
}

func TestHNSWBuild(t *testing.T) {
	t.Run("rejects empty dataset", func(t *testing.T) {
		ds, err := index.NewDataset(nil, 0)
		require.NoError(t, err)

		err = New().Build(context.Background(), ds)
		assert.ErrorIs(t, err, index.ErrEmptyDataset)
	})

	t.Run("size and dimension after build", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)
		assert.Equal(t, 4, h.Size())
		assert.Equal(t, 2, h.Dimension())
	})
}

func TestHNSWKNNSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns nearest first with exact distances", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		results, err := h.KNNSearch(ctx, []float32{0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, 0, results[0].Index)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
		assert.InDelta(t, 1.0, results[1].Distance, 1e-6)
	})

	t.Run("k larger than dataset returns all points", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		results, err := h.KNNSearch(ctx, []float32{0, 0}, 100, nil)
		require.NoError(t, err)
		assert.Len(t, results, 4)
	})

	t.Run("rejects non-positive k", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		_, err := h.KNNSearch(ctx, []float32{0, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("rejects wrong query dimension", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		_, err := h.KNNSearch(ctx, []float32{0}, 1, nil)
		var dm *index.ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("not built", func(t *testing.T) {
		_, err := New().KNNSearch(ctx, []float32{0, 0}, 1, nil)
		assert.ErrorIs(t, err, index.ErrNotBuilt)
	})

	t.Run("allow-list filters results", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		allow := roaring.BitmapOf(3)
		results, err := h.KNNSearch(ctx, []float32{0, 0}, 4, &index.SearchOptions{Allow: allow})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 3, results[0].Index)
	})
}

func TestHNSWRadiusSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns points within radius sorted ascending", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		results, err := h.RadiusSearch(ctx, []float32{0, 0}, 1.5, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, 0, results[0].Index)
		assert.Equal(t, 1, results[1].Index)
		assert.Equal(t, 2, results[2].Index)
	})

	t.Run("radius zero matches coincident points only", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		results, err := h.RadiusSearch(ctx, []float32{5, 5}, 0, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 3, results[0].Index)
	})

	t.Run("rejects negative radius", func(t *testing.T) {
		h := buildTestIndex(t, 1.0)

		_, err := h.RadiusSearch(ctx, []float32{0, 0}, -0.5, nil)
		assert.ErrorIs(t, err, index.ErrNegativeRadius)
	})
}

func TestHNSWPersistRestore(t *testing.T) {
	h := buildTestIndex(t, 1.0)

	var buf bytes.Buffer
	require.NoError(t, h.Persist(&buf))
	require.NotZero(t, buf.Len())

	ds, err := index.NewDataset([]float32{0, 0, 1, 0, 0, 1, 5, 5}, 2)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Restore(ds, &buf))

	results, err := restored.KNNSearch(context.Background(), []float32{5, 5}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Index)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestCandidateBudget(t *testing.T) {
	h := buildTestIndex(t, 1.0)
	assert.Equal(t, 4, h.candidateBudget(2), "budget is clamped to the dataset size")

	low := buildTestIndex(t, 0.0)
	assert.Equal(t, 2, low.candidateBudget(2), "zero precision keeps the raw k")
}
