// Package index defines the backend contract shared by the exact and the
// approximate nearest-neighbor implementations.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNegativeRadius is returned when a radius query uses a negative radius.
	ErrNegativeRadius = errors.New("radius must not be negative")

	// ErrNotBuilt is returned when a search or persistence operation runs
	// against a backend that has not been built yet.
	ErrNotBuilt = errors.New("index not built")

	// ErrEmptyDataset is returned when a build runs against a dataset
	// without any points.
	ErrEmptyDataset = errors.New("dataset is empty")
)

// ErrDimensionMismatch indicates a query/dataset dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Kind identifies a backend implementation in snapshot headers.
type Kind uint8

const (
	// KindFlat is the exact brute-force backend.
	KindFlat Kind = 1
	// KindHNSW is the approximate graph backend.
	KindHNSW Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindHNSW:
		return "hnsw"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// SearchResult is a single neighbor hit. Distance is the Euclidean (L2)
// distance between the query and the dataset point at Index.
type SearchResult struct {
	Index    int
	Distance float32
}

// SearchOptions tunes a single search call.
type SearchOptions struct {
	// Allow restricts results to the given dataset indices when non-nil.
	Allow *roaring.Bitmap
}

// Allows reports whether the dataset index passes the allow-list filter.
func (o *SearchOptions) Allows(i uint32) bool {
	if o == nil || o.Allow == nil {
		return true
	}
	return o.Allow.Contains(i)
}

// Index is a nearest-neighbor backend over an immutable dataset.
//
// Backends do not own lifecycle validation: callers must Build (or Restore)
// before searching. Search results are sorted by ascending distance with
// ascending dataset index as tie-breaker.
type Index interface {
	// Build constructs the index over the dataset.
	Build(ctx context.Context, ds *Dataset) error

	// KNNSearch returns up to k nearest neighbors of q.
	KNNSearch(ctx context.Context, q []float32, k int, opts *SearchOptions) ([]SearchResult, error)

	// RadiusSearch returns all neighbors within radius of q (inclusive).
	RadiusSearch(ctx context.Context, q []float32, radius float32, opts *SearchOptions) ([]SearchResult, error)

	// Size returns the number of indexed points.
	Size() int

	// Dimension returns the dimensionality of indexed points.
	Dimension() int

	// Kind identifies the backend for snapshot headers.
	Kind() Kind

	// Persist writes the backend state to w.
	Persist(w io.Writer) error

	// Restore loads previously persisted state for the given dataset.
	Restore(ds *Dataset, r io.Reader) error
}
