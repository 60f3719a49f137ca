package assemble

import (
	"fmt"

	"github.com/emalign/emsolve/internal/matches"
)

// Model maps point correspondences to rows of the sparse system for one
// transform parameterization.
type Model interface {
	// Name returns the model identifier used in config and run metadata.
	Name() string
	// DOF returns the number of unknowns per tile.
	DOF() int
	// RowsPerPoint returns how many matrix rows one correspondence point
	// contributes.
	RowsPerPoint() int
	// NNZPerRow returns the stored entries per row.
	NNZPerRow() int
	// AppendPoint appends the rows for one correspondence point.
	// pBase and qBase are the first column indices of the two tiles' blocks.
	AppendPoint(b *rowBuilder, pBase, qBase int64, px, py, qx, qy float64)
	// Regularization returns the diagonal entries for one tile's block.
	Regularization(lambda, translationFactor float64) []float64
	// SolveVector returns the tile's initial parameter vector, length DOF.
	SolveVector(t matches.Tile) ([]float64, error)
}

// ModelFor returns the model for a config name.
func ModelFor(name string) (Model, error) {
	switch name {
	case "affine":
		return affineModel{}, nil
	case "translation":
		return translationModel{}, nil
	default:
		return nil, fmt.Errorf("unknown transform model %q", name)
	}
}

// affineModel solves for a full 2D affine per tile: [a b c d e f] with
// world = (a·x + b·y + c, d·x + e·y + f). Both sides of a correspondence
// carry unknowns, so rows have zero right-hand side and the solution is
// pinned by the regularization pull toward the initial transforms.
type affineModel struct{}

func (affineModel) Name() string      { return "affine" }
func (affineModel) DOF() int          { return 6 }
func (affineModel) RowsPerPoint() int { return 2 }
func (affineModel) NNZPerRow() int    { return 6 }

func (affineModel) AppendPoint(b *rowBuilder, pBase, qBase int64, px, py, qx, qy float64) {
	// x row: a_p·px + b_p·py + c_p - a_q·qx - b_q·qy - c_q = 0
	b.appendRow(
		[]int64{pBase, pBase + 1, pBase + 2, qBase, qBase + 1, qBase + 2},
		[]float64{px, py, 1, -qx, -qy, -1},
		0,
	)
	// y row: same pattern over the d e f block
	b.appendRow(
		[]int64{pBase + 3, pBase + 4, pBase + 5, qBase + 3, qBase + 4, qBase + 5},
		[]float64{px, py, 1, -qx, -qy, -1},
		0,
	)
}

func (affineModel) Regularization(lambda, translationFactor float64) []float64 {
	tf := lambda * translationFactor
	return []float64{lambda, lambda, tf, lambda, lambda, tf}
}

func (affineModel) SolveVector(t matches.Tile) ([]float64, error) {
	if len(t.Params) != 6 {
		return nil, fmt.Errorf("tile %s: affine model needs 6 params, got %d", t.ID, len(t.Params))
	}
	out := make([]float64, 6)
	copy(out, t.Params)
	return out, nil
}

// translationModel solves for a per-tile offset [tx ty]. The point
// coordinates are constants here, so rows carry the coordinate difference
// on the right-hand side.
type translationModel struct{}

func (translationModel) Name() string      { return "translation" }
func (translationModel) DOF() int          { return 2 }
func (translationModel) RowsPerPoint() int { return 2 }
func (translationModel) NNZPerRow() int    { return 2 }

func (translationModel) AppendPoint(b *rowBuilder, pBase, qBase int64, px, py, qx, qy float64) {
	// x row: tx_p - tx_q = qx - px
	b.appendRow([]int64{pBase, qBase}, []float64{1, -1}, qx-px)
	// y row: ty_p - ty_q = qy - py
	b.appendRow([]int64{pBase + 1, qBase + 1}, []float64{1, -1}, qy-py)
}

func (translationModel) Regularization(lambda, translationFactor float64) []float64 {
	tf := lambda * translationFactor
	return []float64{tf, tf}
}

func (translationModel) SolveVector(t matches.Tile) ([]float64, error) {
	if len(t.Params) != 2 {
		return nil, fmt.Errorf("tile %s: translation model needs 2 params, got %d", t.ID, len(t.Params))
	}
	out := make([]float64, 2)
	copy(out, t.Params)
	return out, nil
}

// rowBuilder accumulates CSR rows for one chunk.
type rowBuilder struct {
	data    []float64
	indices []int64
	indptr  []int64
	rhs     []float64
	weights []float64
}

func newRowBuilder(rowsHint, nnzHint int) *rowBuilder {
	b := &rowBuilder{
		data:    make([]float64, 0, nnzHint),
		indices: make([]int64, 0, nnzHint),
		indptr:  make([]int64, 1, rowsHint+1),
		rhs:     make([]float64, 0, rowsHint),
		weights: make([]float64, 0, rowsHint),
	}
	b.indptr[0] = 0
	return b
}

// appendRow adds one row. Weights are attached afterwards via weightRows.
func (b *rowBuilder) appendRow(cols []int64, vals []float64, rhs float64) {
	b.indices = append(b.indices, cols...)
	b.data = append(b.data, vals...)
	b.indptr = append(b.indptr, int64(len(b.data)))
	b.rhs = append(b.rhs, rhs)
}

// weightRows appends weights for the n most recent rows.
func (b *rowBuilder) weightRows(n int, w float64) {
	for i := 0; i < n; i++ {
		b.weights = append(b.weights, w)
	}
}

// rows returns the number of rows accumulated so far.
func (b *rowBuilder) rows() int {
	return len(b.indptr) - 1
}
