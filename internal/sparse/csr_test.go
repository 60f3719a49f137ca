package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMatrix returns the 3x4 matrix
//
//	[1 0 2 0]
//	[0 3 0 0]
//	[4 0 0 5]
func testMatrix(t *testing.T) *CSR {
	t.Helper()
	m, err := NewCSR(3, 4,
		[]float64{1, 2, 3, 4, 5},
		[]int64{0, 2, 1, 0, 3},
		[]int64{0, 2, 3, 5},
	)
	require.NoError(t, err)
	return m
}

func TestNewCSRValidation(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		cols    int
		data    []float64
		indices []int64
		indptr  []int64
	}{
		{
			name: "indptr length mismatch",
			rows: 2, cols: 2,
			data: []float64{1}, indices: []int64{0}, indptr: []int64{0, 1},
		},
		{
			name: "data indices mismatch",
			rows: 1, cols: 2,
			data: []float64{1, 2}, indices: []int64{0}, indptr: []int64{0, 2},
		},
		{
			name: "indptr end mismatch",
			rows: 1, cols: 2,
			data: []float64{1}, indices: []int64{0}, indptr: []int64{0, 2},
		},
		{
			name: "column out of range",
			rows: 1, cols: 2,
			data: []float64{1}, indices: []int64{2}, indptr: []int64{0, 1},
		},
		{
			name: "indptr not monotonic",
			rows: 2, cols: 2,
			data: []float64{1}, indices: []int64{0}, indptr: []int64{0, 2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSR(tt.rows, tt.cols, tt.data, tt.indices, tt.indptr)
			assert.Error(t, err)
		})
	}
}

func TestMulVec(t *testing.T) {
	m := testMatrix(t)
	v := []float64{1, 2, 3, 4}
	dst := make([]float64, 3)

	m.MulVec(dst, v)

	assert.Equal(t, []float64{7, 6, 24}, dst)
}

func TestMulVecParallelMatchesSerial(t *testing.T) {
	// Large enough to take the parallel path.
	rows := 1000
	data := make([]float64, 0, rows*2)
	indices := make([]int64, 0, rows*2)
	indptr := make([]int64, 1, rows+1)
	for i := 0; i < rows; i++ {
		data = append(data, float64(i+1), 2)
		indices = append(indices, int64(i%7), int64(7+i%3))
		indptr = append(indptr, int64(len(data)))
	}
	m, err := NewCSR(rows, 10, data, indices, indptr)
	require.NoError(t, err)

	v := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	serial := make([]float64, rows)
	parallel := make([]float64, rows)

	m.MulVec(serial, v)
	m.MulVecParallel(parallel, v, 4)

	assert.Equal(t, serial, parallel)
}

func TestMulTransVec(t *testing.T) {
	m := testMatrix(t)
	v := []float64{1, 2, 3}
	dst := make([]float64, 4)

	m.MulTransVec(dst, v)

	// Mᵀv: col0 = 1*1 + 4*3, col1 = 3*2, col2 = 2*1, col3 = 5*3
	assert.Equal(t, []float64{13, 6, 2, 15}, dst)
}

func TestDropColumns(t *testing.T) {
	// Column 1 is empty and droppable.
	m, err := NewCSR(2, 3,
		[]float64{1, 2, 3},
		[]int64{0, 2, 2},
		[]int64{0, 2, 3},
	)
	require.NoError(t, err)

	dropped, err := m.DropColumns([]bool{true, false, true})
	require.NoError(t, err)

	assert.Equal(t, 2, dropped.Cols)
	assert.Equal(t, []int64{0, 1, 1}, dropped.Indices)
	assert.Equal(t, m.Data, dropped.Data)
}

func TestDropColumnsRejectsUsedColumn(t *testing.T) {
	m := testMatrix(t)

	_, err := m.DropColumns([]bool{true, false, true, true})
	assert.Error(t, err)
}

func TestVecOps(t *testing.T) {
	assert.Equal(t, 11.0, Dot([]float64{1, 2}, []float64{3, 4}))
	assert.Equal(t, 5.0, Norm2([]float64{3, 4}))

	dst := []float64{1, 1}
	Axpy(dst, 2, []float64{1, 2})
	assert.Equal(t, []float64{3, 5}, dst)

	d := Diag{2, 3}
	out := make([]float64, 2)
	d.MulVec(out, []float64{4, 5})
	assert.Equal(t, []float64{8, 15}, out)
}
