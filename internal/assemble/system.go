package assemble

import (
	"github.com/emalign/emsolve/internal/sparse"
)

// System is a fully assembled regularized least-squares problem:
// minimize |W½(A·x − b)|² + |R½(x − x0)|², restricted to the tiles that
// actually appear in matches.
type System struct {
	A       *sparse.CSR
	Weights sparse.Diag // per-row match weights
	Reg     sparse.Diag // per-unknown regularization diagonal
	RHS     []float64   // b, per-row right-hand side
	X0      []float64   // initial parameter vector, per-unknown

	Transform string   // model name
	TileIDs   []string // kept tiles, in column-block order
	DOF       int      // unknowns per tile
	ZVals     []float64

	// Assembly bookkeeping
	MatchesUsed int
	TilesTotal  int // tiles considered before dropping unused ones
}

// Unknowns returns the total number of unknowns.
func (s *System) Unknowns() int {
	return len(s.TileIDs) * s.DOF
}
