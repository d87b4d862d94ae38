package index

import "fmt"

// Dataset is an immutable collection of points stored as a flattened
// row-major float32 slice: point i occupies data[i*dim : (i+1)*dim].
type Dataset struct {
	data []float32
	dim  int
}

// NewDataset creates a dataset from a flattened slice. The slice is copied
// so later caller mutations do not affect the index.
func NewDataset(data []float32, dim int) (*Dataset, error) {
	if dim < 0 {
		return nil, fmt.Errorf("dimension must not be negative: %d", dim)
	}
	if dim == 0 {
		if len(data) != 0 {
			return nil, fmt.Errorf("zero dimension with %d values", len(data))
		}
		return &Dataset{dim: 0}, nil
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("flattened length %d is not a multiple of dimension %d", len(data), dim)
	}

	owned := make([]float32, len(data))
	copy(owned, data)

	return &Dataset{data: owned, dim: dim}, nil
}

// Len returns the number of points.
func (ds *Dataset) Len() int {
	if ds == nil || ds.dim == 0 {
		return 0
	}
	return len(ds.data) / ds.dim
}

// Dim returns the dimensionality of the points.
func (ds *Dataset) Dim() int {
	if ds == nil {
		return 0
	}
	return ds.dim
}

// At returns point i without copying. Callers must treat the slice as
// read-only.
func (ds *Dataset) At(i int) []float32 {
	return ds.data[i*ds.dim : (i+1)*ds.dim]
}

// Raw returns the flattened backing slice. Callers must treat the slice as
// read-only.
func (ds *Dataset) Raw() []float32 {
	if ds == nil {
		return nil
	}
	return ds.data
}
