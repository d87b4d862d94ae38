// Package proxima provides an embedded nearest-neighbor index for Go.
//
// An Index is created over a flattened float32 dataset and built in a
// separate, explicitly triggered phase. Once built it answers batch
// k-nearest-neighbor and radius queries and can be persisted to a file or
// a blob store and reopened later.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	idx, err := proxima.New(dataset, 128)
//	if err != nil {
//	    panic(err)
//	}
//	if err := idx.BuildIndex(ctx); err != nil {
//	    panic(err)
//	}
//
//	res, err := idx.KNNSearch(ctx, query, 128, 10)
//
// By default the index is exact. Configuring a target precision in (0,1]
// trades recall for speed by switching to a graph-based approximate
// backend:
//
//	idx, err := proxima.New(dataset, 128, proxima.WithTargetPrecision(0.9))
//
// Built indexes can be saved and reopened against the same dataset:
//
//	_ = idx.Save(ctx, "index.prx")
//	idx2, _ := proxima.NewFromFile(ctx, dataset, 128, "index.prx")
package proxima

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/proxima/blobstore"
	"github.com/hupe1980/proxima/index"
	"github.com/hupe1980/proxima/index/flat"
	"github.com/hupe1980/proxima/index/hnsw"
	"github.com/hupe1980/proxima/persistence"
)

// BatchResult holds per-query search results. Indices[i] and Distances[i]
// are parallel slices for query i, sorted by ascending distance.
type BatchResult struct {
	Indices   [][]int
	Distances [][]float32
}

// Index is a nearest-neighbor index over an immutable flattened dataset.
//
// The zero value is not usable; create instances with New, NewFromFile or
// NewFromStore. An Index is safe for concurrent searches; BuildIndex may
// run concurrently with searches and atomically replaces the built state.
type Index struct {
	ds        *index.Dataset
	backend   atomicBackend
	precision float32
	opts      options
}

// atomicBackend publishes the built search structure. Builds swap the
// pointer; in-flight searches keep using the structure they loaded.
type atomicBackend struct {
	p atomic.Pointer[index.Index]
}

func (b *atomicBackend) load() index.Index {
	if p := b.p.Load(); p != nil {
		return *p
	}
	return nil
}

func (b *atomicBackend) store(backend index.Index) {
	b.p.Store(&backend)
}

// New creates an index over a flattened row-major dataset. The dataset is
// copied; the index never mutates or frees caller memory. The index is not
// searchable until BuildIndex succeeds.
func New(dataset []float32, numDims int, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)

	if opts.targetPrecision < 0 || opts.targetPrecision > 1 {
		return nil, fmt.Errorf("%w: target precision %v not in (0,1]", ErrInvalidArgument, opts.targetPrecision)
	}

	ds, err := index.NewDataset(dataset, numDims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return &Index{
		ds:        ds,
		precision: opts.targetPrecision,
		opts:      opts,
	}, nil
}

// NewFromFile creates an index over the dataset and restores the built
// state from a snapshot file previously written by Save. The resulting
// index is immediately searchable.
func NewFromFile(ctx context.Context, dataset []float32, numDims int, filename string, optFns ...Option) (*Index, error) {
	idx, err := New(dataset, numDims, optFns...)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	var snap *persistence.Snapshot
	err = persistence.LoadFromFile(filename, func(r io.Reader) error {
		var readErr error
		snap, readErr = persistence.ReadSnapshot(r)
		return readErr
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrIO, err)
	} else {
		err = idx.restoreSnapshot(snap)
	}

	idx.opts.metricsCollector.RecordLoad(time.Since(start), err)
	idx.opts.logger.LogLoad(ctx, filename, err)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// NewFromStore is like NewFromFile but reads the snapshot from a blob
// store.
func NewFromStore(ctx context.Context, dataset []float32, numDims int, store blobstore.BlobStore, name string, optFns ...Option) (*Index, error) {
	idx, err := New(dataset, numDims, optFns...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snap, err := readStoreSnapshot(ctx, store, name)
	if err == nil {
		err = idx.restoreSnapshot(snap)
	}

	idx.opts.metricsCollector.RecordLoad(time.Since(start), err)
	idx.opts.logger.LogLoad(ctx, name, err)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func readStoreSnapshot(ctx context.Context, store blobstore.BlobStore, name string) (*persistence.Snapshot, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer blob.Close()

	r, err := blob.Reader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer r.Close()

	snap, err := persistence.ReadSnapshot(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return snap, nil
}

func (idx *Index) restoreSnapshot(snap *persistence.Snapshot) error {
	if int(snap.Header.VectorCount) != idx.ds.Len() || int(snap.Header.Dimension) != idx.ds.Dim() {
		return fmt.Errorf("%w: snapshot shape %dx%d does not match dataset %dx%d",
			ErrInvalidArgument,
			snap.Header.VectorCount, snap.Header.Dimension,
			idx.ds.Len(), idx.ds.Dim())
	}

	if idx.precision == 0 {
		idx.precision = snap.Header.TargetPrecision
	}

	var backend index.Index
	switch index.Kind(snap.Header.IndexKind) {
	case index.KindFlat:
		backend = flat.New()
	case index.KindHNSW:
		precision := idx.precision
		backend = hnsw.New(func(o *hnsw.Options) {
			if precision > 0 {
				o.TargetPrecision = precision
			}
		})
	default:
		return fmt.Errorf("%w: %w: %d", ErrIO, persistence.ErrInvalidIndex, snap.Header.IndexKind)
	}

	if err := backend.Restore(idx.ds, bytes.NewReader(snap.Payload)); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	idx.backend.store(backend)
	return nil
}

// BuildIndex constructs the search structure over the dataset. Building an
// already built index replaces the previous structure; searches running
// against it are unaffected. An empty dataset or zero dimensionality is a
// build failure.
func (idx *Index) BuildIndex(ctx context.Context) error {
	start := time.Now()
	err := idx.buildIndex(ctx)

	idx.opts.metricsCollector.RecordBuild(time.Since(start), err)
	idx.opts.logger.LogBuild(ctx, idx.kindName(), idx.ds.Len(), idx.ds.Dim(), err)
	return err
}

func (idx *Index) buildIndex(ctx context.Context) error {
	var backend index.Index
	if idx.precision > 0 {
		precision := idx.precision
		backend = hnsw.New(func(o *hnsw.Options) {
			o.TargetPrecision = precision
		})
	} else {
		backend = flat.New()
	}

	if err := backend.Build(ctx, idx.ds); err != nil {
		if translated := translateError(err); translated != err {
			return translated
		}
		return fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}

	idx.backend.store(backend)
	return nil
}

func (idx *Index) kindName() string {
	if idx.precision > 0 {
		return index.KindHNSW.String()
	}
	return index.KindFlat.String()
}

// KNNSearch finds the k nearest dataset points for each query point in the
// flattened queries slice. Results per query are sorted by ascending
// Euclidean distance and contain fewer than k entries when the dataset is
// smaller than k.
func (idx *Index) KNNSearch(ctx context.Context, queries []float32, numDims, k int, optFns ...func(*SearchOptions)) (*BatchResult, error) {
	start := time.Now()

	result, err := idx.knnSearch(ctx, queries, numDims, k, applySearchOptions(optFns))

	n := 0
	if numDims > 0 {
		n = len(queries) / numDims
	}
	idx.opts.metricsCollector.RecordKNNSearch(n, k, time.Since(start), err)
	idx.opts.logger.LogKNNSearch(ctx, n, k, err)
	return result, err
}

func (idx *Index) knnSearch(ctx context.Context, queries []float32, numDims, k int, opts SearchOptions) (*BatchResult, error) {
	backend, qs, err := idx.prepareSearch(queries, numDims)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, translateError(index.ErrInvalidK)
	}

	searchOpts := &index.SearchOptions{Allow: opts.Allow}

	result := &BatchResult{
		Indices:   make([][]int, len(qs)),
		Distances: make([][]float32, len(qs)),
	}

	err = idx.forEachQuery(ctx, qs, func(ctx context.Context, i int, q []float32) error {
		results, searchErr := backend.KNNSearch(ctx, q, k, searchOpts)
		if searchErr != nil {
			return searchErr
		}
		result.Indices[i], result.Distances[i] = splitResults(results)
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return result, nil
}

// RadiusSearch finds all dataset points within radius (inclusive) of each
// query point. It returns the per-query results plus the total number of
// matches across all queries.
func (idx *Index) RadiusSearch(ctx context.Context, queries []float32, numDims int, radius float32, optFns ...func(*SearchOptions)) (*BatchResult, int, error) {
	start := time.Now()

	result, total, err := idx.radiusSearch(ctx, queries, numDims, radius, applySearchOptions(optFns))

	n := 0
	if numDims > 0 {
		n = len(queries) / numDims
	}
	idx.opts.metricsCollector.RecordRadiusSearch(n, total, time.Since(start), err)
	idx.opts.logger.LogRadiusSearch(ctx, n, radius, total, err)
	return result, total, err
}

func (idx *Index) radiusSearch(ctx context.Context, queries []float32, numDims int, radius float32, opts SearchOptions) (*BatchResult, int, error) {
	backend, qs, err := idx.prepareSearch(queries, numDims)
	if err != nil {
		return nil, 0, err
	}
	if radius < 0 {
		return nil, 0, translateError(index.ErrNegativeRadius)
	}

	searchOpts := &index.SearchOptions{Allow: opts.Allow}

	result := &BatchResult{
		Indices:   make([][]int, len(qs)),
		Distances: make([][]float32, len(qs)),
	}

	err = idx.forEachQuery(ctx, qs, func(ctx context.Context, i int, q []float32) error {
		results, searchErr := backend.RadiusSearch(ctx, q, radius, searchOpts)
		if searchErr != nil {
			return searchErr
		}
		result.Indices[i], result.Distances[i] = splitResults(results)
		return nil
	})
	if err != nil {
		return nil, 0, translateError(err)
	}

	total := 0
	for _, ids := range result.Indices {
		total += len(ids)
	}
	return result, total, nil
}

// prepareSearch validates the query batch shape against the built index
// and splits the flattened slice into per-query views.
func (idx *Index) prepareSearch(queries []float32, numDims int) (index.Index, [][]float32, error) {
	backend := idx.backend.load()
	if backend == nil {
		return nil, nil, fmt.Errorf("%w: call BuildIndex first", ErrNotReady)
	}

	if numDims != idx.ds.Dim() {
		return nil, nil, translateError(&index.ErrDimensionMismatch{Expected: idx.ds.Dim(), Actual: numDims})
	}
	if numDims <= 0 || len(queries) == 0 || len(queries)%numDims != 0 {
		return nil, nil, fmt.Errorf("%w: flattened query length %d is not a positive multiple of dimension %d", ErrInvalidArgument, len(queries), numDims)
	}

	qs := make([][]float32, len(queries)/numDims)
	for i := range qs {
		qs[i] = queries[i*numDims : (i+1)*numDims]
	}
	return backend, qs, nil
}

// forEachQuery fans the per-query work out over an errgroup bounded by the
// resource controller. Each worker writes to its own result slot, so the
// output order is deterministic.
func (idx *Index) forEachQuery(ctx context.Context, qs [][]float32, fn func(ctx context.Context, i int, q []float32) error) error {
	controller := idx.opts.controller

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(controller.MaxSearchWorkers())

	for i, q := range qs {
		g.Go(func() error {
			if err := controller.AcquireSearch(ctx); err != nil {
				return err
			}
			defer controller.ReleaseSearch()

			return fn(ctx, i, q)
		})
	}
	return g.Wait()
}

func splitResults(results []index.SearchResult) ([]int, []float32) {
	ids := make([]int, len(results))
	dists := make([]float32, len(results))
	for i, r := range results {
		ids[i] = r.Index
		dists[i] = r.Distance
	}
	return ids, dists
}

// Save persists the built index to a snapshot file. The write is atomic:
// the file appears complete or not at all.
func (idx *Index) Save(ctx context.Context, filename string) error {
	start := time.Now()
	err := idx.save(ctx, filename)

	idx.opts.metricsCollector.RecordSave(time.Since(start), err)
	idx.opts.logger.LogSnapshot(ctx, filename, err)
	return err
}

func (idx *Index) save(ctx context.Context, filename string) error {
	backend := idx.backend.load()
	if backend == nil {
		return fmt.Errorf("%w: call BuildIndex first", ErrNotReady)
	}

	payload, manifest, err := idx.snapshotParts(backend)
	if err != nil {
		return err
	}

	err = persistence.SaveToFile(filename, func(w io.Writer) error {
		w = idx.opts.controller.LimitWriter(ctx, w)
		return persistence.WriteSnapshot(w, idx.opts.codec, idx.opts.compression, manifest, payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// SaveToStore persists the built index to a blob store under the given
// name.
func (idx *Index) SaveToStore(ctx context.Context, store blobstore.BlobStore, name string) error {
	start := time.Now()
	err := idx.saveToStore(ctx, store, name)

	idx.opts.metricsCollector.RecordSave(time.Since(start), err)
	idx.opts.logger.LogSnapshot(ctx, name, err)
	return err
}

func (idx *Index) saveToStore(ctx context.Context, store blobstore.BlobStore, name string) error {
	backend := idx.backend.load()
	if backend == nil {
		return fmt.Errorf("%w: call BuildIndex first", ErrNotReady)
	}

	payload, manifest, err := idx.snapshotParts(backend)
	if err != nil {
		return err
	}

	wb, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	w := idx.opts.controller.LimitWriter(ctx, wb)
	if err := persistence.WriteSnapshot(w, idx.opts.codec, idx.opts.compression, manifest, payload); err != nil {
		_ = wb.Close()
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := wb.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (idx *Index) snapshotParts(backend index.Index) ([]byte, persistence.Manifest, error) {
	var payload bytes.Buffer
	if err := backend.Persist(&payload); err != nil {
		return nil, persistence.Manifest{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	manifest := persistence.Manifest{
		Kind:            backend.Kind().String(),
		Count:           backend.Size(),
		Dimension:       backend.Dimension(),
		TargetPrecision: idx.precision,
		CreatedAt:       time.Now().UTC(),
	}
	return payload.Bytes(), manifest, nil
}

// Veclen returns the dimensionality the index was created with.
func (idx *Index) Veclen() int {
	return idx.ds.Dim()
}

// Size returns the number of dataset points.
func (idx *Index) Size() int {
	return idx.ds.Len()
}

// RadiusSearch performs a one-shot self radius search: it builds a
// temporary exact index over the given points and queries it with the same
// points. This is the convenience entry point for computing neighborhood
// graphs without managing index lifecycle.
func RadiusSearch(ctx context.Context, queries []float32, numDims int, radius float32) (*BatchResult, int, error) {
	idx, err := New(queries, numDims)
	if err != nil {
		return nil, 0, err
	}
	if err := idx.BuildIndex(ctx); err != nil {
		return nil, 0, err
	}
	return idx.RadiusSearch(ctx, queries, numDims, radius)
}
