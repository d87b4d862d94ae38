package proxima

import (
	"errors"
	"fmt"

	"github.com/hupe1980/proxima/index"
)

var (
	// ErrInvalidArgument is returned when a caller-supplied argument is
	// structurally invalid (bad shape, non-positive k, negative radius,
	// out-of-range precision).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotReady is returned when a search or save runs before BuildIndex.
	ErrNotReady = errors.New("index not built")

	// ErrBuildFailure is returned when index construction fails.
	ErrBuildFailure = errors.New("index build failed")

	// ErrIO is returned when persisting or loading an index fails.
	ErrIO = errors.New("index io failed")
)

// ErrDimensionMismatch indicates a query/dataset dimensionality mismatch.
//
// It satisfies errors.Is(err, ErrInvalidArgument). The original underlying
// error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func (e *ErrDimensionMismatch) Is(target error) bool { return target == ErrInvalidArgument }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Dimension and argument normalization.
	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if errors.Is(err, index.ErrNegativeRadius) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	// Lifecycle normalization.
	if errors.Is(err, index.ErrNotBuilt) {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	if errors.Is(err, index.ErrEmptyDataset) {
		return fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}

	return err
}
