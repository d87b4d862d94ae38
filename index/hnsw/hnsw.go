// Package hnsw provides the approximate backend. Graph construction and
// traversal are delegated to github.com/coder/hnsw; this package maps the
// configured target precision onto the candidate budget and re-ranks
// candidates exactly against the dataset so reported distances match the
// exact backend.
package hnsw

import (
	"context"
	"io"
	"sort"

	hnswlib "github.com/coder/hnsw"

	"github.com/hupe1980/proxima/distance"
	"github.com/hupe1980/proxima/index"
	"github.com/hupe1980/proxima/internal/queue"
)

func init() {
	// Register the distance function so imported graphs resolve it by name.
	hnswlib.RegisterDistanceFunc("euclidean", hnswlib.EuclideanDistance)
}

// Compile-time check to ensure HNSW satisfies the backend interface.
var _ index.Index = (*HNSW)(nil)

// DefaultTargetPrecision is used when no precision is configured.
const DefaultTargetPrecision = 0.9

// maxOversample bounds the candidate budget multiplier at full precision.
const maxOversample = 8

// Options contains configuration options for the approximate backend.
type Options struct {
	// TargetPrecision is the desired recall in (0,1]. Higher values widen
	// the candidate set fetched from the graph before exact re-ranking.
	TargetPrecision float32
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	TargetPrecision: DefaultTargetPrecision,
}

// HNSW is the approximate search backend.
type HNSW struct {
	graph     *hnswlib.Graph[uint32]
	ds        *index.Dataset
	precision float32
}

// New creates an unbuilt approximate backend.
func New(optFns ...func(o *Options)) *HNSW {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &HNSW{precision: opts.TargetPrecision}
}

// Build inserts every dataset point into a fresh graph.
func (h *HNSW) Build(ctx context.Context, ds *index.Dataset) error {
	if ds.Len() == 0 {
		return index.ErrEmptyDataset
	}

	g := hnswlib.NewGraph[uint32]()
	g.Distance = hnswlib.EuclideanDistance

	for i := 0; i < ds.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.Add(hnswlib.MakeNode(uint32(i), ds.At(i)))
	}

	h.graph = g
	h.ds = ds
	return nil
}

// candidateBudget maps the target precision onto the number of graph
// candidates fetched for a request of k results.
func (h *HNSW) candidateBudget(k int) int {
	factor := 1 + int(h.precision*float32(maxOversample-1))
	m := k * factor
	if n := h.ds.Len(); m > n {
		m = n
	}
	return m
}

// KNNSearch returns up to k approximate nearest neighbors of q.
func (h *HNSW) KNNSearch(ctx context.Context, q []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.graph == nil {
		return nil, index.ErrNotBuilt
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != h.ds.Dim() {
		return nil, &index.ErrDimensionMismatch{Expected: h.ds.Dim(), Actual: len(q)}
	}

	m := h.candidateBudget(k)
	if opts != nil && opts.Allow != nil {
		// A filtered search discards candidates after the fact, so fetch
		// the whole allow-list budget where feasible.
		m *= 2
		if n := h.ds.Len(); m > n {
			m = n
		}
	}

	nodes := h.graph.Search(q, m)

	top := queue.NewMax(k)
	for _, node := range nodes {
		if !opts.Allows(node.Key) {
			continue
		}
		d := distance.SquaredL2(q, h.ds.At(int(node.Key)))
		top.Offer(queue.Item{Index: node.Key, Distance: d}, k)
	}

	if top.Len() == 0 {
		return nil, nil
	}

	results := make([]index.SearchResult, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item := top.PopItem()
		results[i] = index.SearchResult{Index: int(item.Index), Distance: distance.Sqrt(item.Distance)}
	}
	return results, nil
}

// RadiusSearch widens the candidate set until the frontier passes the
// radius, then keeps everything within it.
func (h *HNSW) RadiusSearch(ctx context.Context, q []float32, radius float32, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.graph == nil {
		return nil, index.ErrNotBuilt
	}
	if radius < 0 {
		return nil, index.ErrNegativeRadius
	}
	if len(q) != h.ds.Dim() {
		return nil, &index.ErrDimensionMismatch{Expected: h.ds.Dim(), Actual: len(q)}
	}

	n := h.ds.Len()
	limit := radius * radius

	m := h.candidateBudget(16)
	var nodes []hnswlib.Node[uint32]
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nodes = h.graph.Search(q, m)
		if m >= n {
			break
		}

		// Stop growing once the farthest candidate lies outside the radius.
		var farthest float32
		for _, node := range nodes {
			if d := distance.SquaredL2(q, h.ds.At(int(node.Key))); d > farthest {
				farthest = d
			}
		}
		if len(nodes) > 0 && farthest > limit {
			break
		}

		m *= 2
		if m > n {
			m = n
		}
	}

	var results []index.SearchResult
	for _, node := range nodes {
		if !opts.Allows(node.Key) {
			continue
		}
		d := distance.SquaredL2(q, h.ds.At(int(node.Key)))
		if d <= limit {
			results = append(results, index.SearchResult{Index: int(node.Key), Distance: distance.Sqrt(d)})
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
func (h *HNSW) Size() int {
	return h.ds.Len()
}

// Dimension returns the dimensionality of indexed points.
func (h *HNSW) Dimension() int {
	return h.ds.Dim()
}

// Kind identifies the backend for snapshot headers.
func (*HNSW) Kind() index.Kind { return index.KindHNSW }

// Persist writes the graph in its native export format.
func (h *HNSW) Persist(w io.Writer) error {
	if h.graph == nil {
		return index.ErrNotBuilt
	}
	return h.graph.Export(w)
}

// Restore loads a previously exported graph for the given dataset.
func (h *HNSW) Restore(ds *index.Dataset, r io.Reader) error {
	if ds.Len() == 0 {
		return index.ErrEmptyDataset
	}

	g := hnswlib.NewGraph[uint32]()
	if err := g.Import(r); err != nil {
		return err
	}

	h.graph = g
	h.ds = ds
	return nil
}
