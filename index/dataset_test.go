package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataset(t *testing.T) {
	t.Run("valid shape", func(t *testing.T) {
		ds, err := NewDataset([]float32{0, 0, 1, 0, 0, 1}, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, ds.Len())
		assert.Equal(t, 2, ds.Dim())
		assert.Equal(t, []float32{1, 0}, ds.At(1))
	})

	t.Run("rejects negative dimension", func(t *testing.T) {
		_, err := NewDataset([]float32{1, 2}, -1)
		require.Error(t, err)
	})

	t.Run("rejects ragged length", func(t *testing.T) {
		_, err := NewDataset([]float32{1, 2, 3}, 2)
		require.Error(t, err)
	})

	t.Run("empty dataset with zero dimension", func(t *testing.T) {
		ds, err := NewDataset(nil, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, ds.Len())
	})

	t.Run("copies the input slice", func(t *testing.T) {
		src := []float32{1, 2}
		ds, err := NewDataset(src, 2)
		require.NoError(t, err)

		src[0] = 99
		assert.Equal(t, float32(1), ds.At(0)[0])
	})
}

func TestSearchOptionsAllows(t *testing.T) {
	var opts *SearchOptions
	assert.True(t, opts.Allows(7), "nil options allow everything")
	assert.True(t, (&SearchOptions{}).Allows(7), "nil bitmap allows everything")
}
