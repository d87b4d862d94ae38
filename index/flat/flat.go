// Package flat provides the exact brute-force backend. It scans every
// dataset point per query, which keeps recall at 100% and needs no
// persisted state beyond the dataset itself.
package flat

import (
	"context"
	"io"
	"sort"

	"github.com/hupe1980/proxima/distance"
	"github.com/hupe1980/proxima/index"
	"github.com/hupe1980/proxima/internal/queue"
)

// Compile-time check to ensure Flat satisfies the backend interface.
var _ index.Index = (*Flat)(nil)

// Flat is the exact search backend.
type Flat struct {
	ds *index.Dataset
}

// New creates an unbuilt flat backend.
func New() *Flat {
	return &Flat{}
}

// Build attaches the dataset. The flat backend has no construction phase
// beyond validating that there is something to scan.
func (f *Flat) Build(ctx context.Context, ds *index.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ds.Len() == 0 {
		return index.ErrEmptyDataset
	}

	f.ds = ds
	return nil
}

// KNNSearch performs an exact k-nearest-neighbor scan.
func (f *Flat) KNNSearch(ctx context.Context, q []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ds == nil {
		return nil, index.ErrNotBuilt
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != f.ds.Dim() {
		return nil, &index.ErrDimensionMismatch{Expected: f.ds.Dim(), Actual: len(q)}
	}

	n := f.ds.Len()
	if k > n {
		k = n
	}

	top := queue.NewMax(k)
	for i := 0; i < n; i++ {
		if !opts.Allows(uint32(i)) {
			continue
		}
		d := distance.SquaredL2(q, f.ds.At(i))
		top.Offer(queue.Item{Index: uint32(i), Distance: d}, k)
	}

	if top.Len() == 0 {
		return nil, nil
	}

	// Pop farthest-first and fill the result slice back to front so the
	// final order is ascending.
	results := make([]index.SearchResult, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item := top.PopItem()
		results[i] = index.SearchResult{Index: int(item.Index), Distance: distance.Sqrt(item.Distance)}
	}
	return results, nil
}

// RadiusSearch returns every point within radius of q, inclusive.
func (f *Flat) RadiusSearch(ctx context.Context, q []float32, radius float32, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ds == nil {
		return nil, index.ErrNotBuilt
	}
	if radius < 0 {
		return nil, index.ErrNegativeRadius
	}
	if len(q) != f.ds.Dim() {
		return nil, &index.ErrDimensionMismatch{Expected: f.ds.Dim(), Actual: len(q)}
	}

	limit := radius * radius

	var results []index.SearchResult
	for i := 0; i < f.ds.Len(); i++ {
		if !opts.Allows(uint32(i)) {
			continue
		}
		d := distance.SquaredL2(q, f.ds.At(i))
		if d <= limit {
			results = append(results, index.SearchResult{Index: i, Distance: distance.Sqrt(d)})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Index < results[j].Index
	})
	return results, nil
}

// Size returns the number of indexed points.
func (f *Flat) Size() int {
	return f.ds.Len()
}

// Dimension returns the dimensionality of indexed points.
func (f *Flat) Dimension() int {
	return f.ds.Dim()
}

// Kind identifies the backend for snapshot headers.
func (*Flat) Kind() index.Kind { return index.KindFlat }

// Persist writes the backend state. The flat backend derives everything
// from the dataset, so the payload is empty.
func (f *Flat) Persist(w io.Writer) error {
	if f.ds == nil {
		return index.ErrNotBuilt
	}
	return nil
}

// Restore re-attaches the dataset. The empty payload is not consumed.
func (f *Flat) Restore(ds *index.Dataset, r io.Reader) error {
	if ds.Len() == 0 {
		return index.ErrEmptyDataset
	}
	f.ds = ds
	return nil
}
