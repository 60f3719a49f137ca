// Package sparse provides compressed sparse row matrices and the small set
// of vector operations the alignment solver needs.
package sparse

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// CSR is a sparse matrix in compressed sparse row format.
// Row i occupies Data[Indptr[i]:Indptr[i+1]] with column positions in Indices.
type CSR struct {
	Rows    int
	Cols    int
	Data    []float64
	Indices []int64
	Indptr  []int64
}

// NewCSR validates the raw arrays and returns a CSR matrix.
func NewCSR(rows, cols int, data []float64, indices, indptr []int64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid shape (%d, %d)", rows, cols)
	}
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("indptr length %d does not match %d rows", len(indptr), rows)
	}
	if len(data) != len(indices) {
		return nil, fmt.Errorf("data length %d does not match indices length %d", len(data), len(indices))
	}
	if indptr[0] != 0 {
		return nil, fmt.Errorf("indptr must start at 0, got %d", indptr[0])
	}
	if indptr[rows] != int64(len(data)) {
		return nil, fmt.Errorf("indptr end %d does not match nnz %d", indptr[rows], len(data))
	}
	for i := 0; i < rows; i++ {
		if indptr[i] > indptr[i+1] {
			return nil, fmt.Errorf("indptr not monotonic at row %d", i)
		}
	}
	for _, c := range indices {
		if c < 0 || c >= int64(cols) {
			return nil, fmt.Errorf("column index %d out of range [0, %d)", c, cols)
		}
	}
	return &CSR{Rows: rows, Cols: cols, Data: data, Indices: indices, Indptr: indptr}, nil
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int {
	return len(m.Data)
}

// MulVec computes dst = M * v. dst must have length Rows.
func (m *CSR) MulVec(dst, v []float64) {
	for i := 0; i < m.Rows; i++ {
		sum := 0.0
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			sum += m.Data[k] * v[m.Indices[k]]
		}
		dst[i] = sum
	}
}

// MulVecParallel computes dst = M * v using up to workers goroutines,
// each owning a contiguous row range.
func (m *CSR) MulVecParallel(dst, v []float64, workers int) {
	if workers < 2 || m.Rows < workers*64 {
		m.MulVec(dst, v)
		return
	}

	chunk := m.Rows / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if w == workers-1 {
			end = m.Rows
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				sum := 0.0
				for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
					sum += m.Data[k] * v[m.Indices[k]]
				}
				dst[i] = sum
			}
			return nil
		})
	}
	_ = g.Wait()
}

// MulTransVec computes dst = Mᵀ * v. dst must have length Cols.
// Runs serially: the scatter pattern would race across row ranges.
func (m *CSR) MulTransVec(dst, v []float64) {
	for j := range dst {
		dst[j] = 0
	}
	for i := 0; i < m.Rows; i++ {
		vi := v[i]
		if vi == 0 {
			continue
		}
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			dst[m.Indices[k]] += m.Data[k] * vi
		}
	}
}

// DropColumns returns a copy of the matrix keeping only the columns where
// keep is true, remapping the column indices. Entries in dropped columns
// must not exist; the caller is expected to have built rows only over
// kept columns.
func (m *CSR) DropColumns(keep []bool) (*CSR, error) {
	if len(keep) != m.Cols {
		return nil, fmt.Errorf("keep mask length %d does not match %d columns", len(keep), m.Cols)
	}

	remap := make([]int64, m.Cols)
	next := int64(0)
	for j, k := range keep {
		if k {
			remap[j] = next
			next++
		} else {
			remap[j] = -1
		}
	}

	indices := make([]int64, len(m.Indices))
	for i, c := range m.Indices {
		nc := remap[c]
		if nc < 0 {
			return nil, fmt.Errorf("column %d has entries but is marked for removal", c)
		}
		indices[i] = nc
	}

	data := make([]float64, len(m.Data))
	copy(data, m.Data)
	indptr := make([]int64, len(m.Indptr))
	copy(indptr, m.Indptr)

	return &CSR{Rows: m.Rows, Cols: int(next), Data: data, Indices: indices, Indptr: indptr}, nil
}
