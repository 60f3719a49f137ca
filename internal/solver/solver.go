// Package solver solves assembled alignment systems locally.
//
// The regularized least-squares problem is solved through its normal
// equations K·x = b with K = AᵀWA + R and b = AᵀW·rhs + R·x0. K is never
// materialized; the conjugate gradient loop applies it as three sparse
// products per iteration.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/emalign/emsolve/internal/assemble"
	"github.com/emalign/emsolve/internal/metrics"
	"github.com/emalign/emsolve/internal/sparse"
)

// ErrClusterOnly is returned when the requested solver configuration needs
// the external distributed factorization rather than a local solve.
var ErrClusterOnly = errors.New("solver configuration requires a cluster solve; use submit")

// Options configures a local solve.
type Options struct {
	KSPType string
	PCType  string
	RTol    float64
	MaxIter int
	Workers int
}

// Result holds solve statistics.
type Result struct {
	Iterations   int
	Converged    bool
	Residual     float64 // relative residual |K·x − b| / |b| from the CG recurrence
	Precision    float64 // recomputed |K·x − b| / |b| at exit
	ErrorNorm    float64 // |A·x − rhs|
	MeanResidual float64 // mean |A·x − rhs| per row
	MaxResidual  float64 // max |A·x − rhs| over rows
	Duration     time.Duration
}

// Message renders the result the way solve logs report it.
func (r *Result) Message() string {
	var b strings.Builder
	if r.Converged {
		fmt.Fprintf(&b, " solved in %d iterations\n", r.Iterations)
	} else {
		fmt.Fprintf(&b, " NOT converged after %d iterations\n", r.Iterations)
	}
	fmt.Fprintf(&b, " precision [norm(Kx-b)/norm(b)] = %.1e\n", r.Precision)
	fmt.Fprintf(&b, " error     [norm(Ax-rhs)]       = %.3f\n", r.ErrorNorm)
	fmt.Fprintf(&b, " residual mean %.3f max %.3f", r.MeanResidual, r.MaxResidual)
	return b.String()
}

// Solve solves the system and returns the solution vector.
func Solve(ctx context.Context, sys *assemble.System, opts Options) ([]float64, *Result, error) {
	if opts.KSPType != "cg" {
		return nil, nil, fmt.Errorf("ksp_type %q: %w", opts.KSPType, ErrClusterOnly)
	}
	if opts.PCType == "lu" {
		return nil, nil, fmt.Errorf("pc_type lu: %w", ErrClusterOnly)
	}
	if opts.MaxIter < 1 {
		return nil, nil, fmt.Errorf("max_iter must be at least 1, got %d", opts.MaxIter)
	}

	start := time.Now()
	op := newNormalOperator(sys, opts.Workers)

	n := sys.A.Cols
	b := op.rightHandSide()
	bnorm := sparse.Norm2(b)
	if bnorm == 0 {
		return nil, nil, fmt.Errorf("right-hand side is zero; nothing to solve")
	}

	var precond sparse.Diag
	switch opts.PCType {
	case "jacobi":
		precond = op.jacobiInverse()
	case "none":
		// identity
	default:
		return nil, nil, fmt.Errorf("unsupported pc_type %q for local solve", opts.PCType)
	}

	// Start from the initial transforms; for well-registered stacks this
	// is already close.
	x := make([]float64, n)
	copy(x, sys.X0)

	r := make([]float64, n)
	op.apply(r, x)
	for i := range r {
		r[i] = b[i] - r[i]
	}

	z := make([]float64, n)
	applyPrecond(z, r, precond)

	p := make([]float64, n)
	copy(p, z)

	q := make([]float64, n)
	rz := sparse.Dot(r, z)

	res := &Result{Residual: sparse.Norm2(r) / bnorm}
	for res.Iterations < opts.MaxIter && res.Residual > opts.RTol {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		op.apply(q, p)
		pq := sparse.Dot(p, q)
		if pq <= 0 {
			// K is positive semidefinite by construction; a non-positive
			// curvature means the system is numerically degenerate.
			return nil, nil, fmt.Errorf("conjugate gradient breakdown at iteration %d (p·Kp = %g)", res.Iterations, pq)
		}

		alpha := rz / pq
		sparse.Axpy(x, alpha, p)
		sparse.Axpy(r, -alpha, q)

		applyPrecond(z, r, precond)
		rzNew := sparse.Dot(r, z)
		beta := rzNew / rz
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
		rz = rzNew

		res.Iterations++
		res.Residual = sparse.Norm2(r) / bnorm
	}
	res.Converged = res.Residual <= opts.RTol

	op.fillStats(res, x, b, bnorm)
	res.Duration = time.Since(start)

	metrics.SolverIterations.Observe(float64(res.Iterations))
	metrics.SolveDuration.Observe(res.Duration.Seconds())

	return x, res, nil
}

// applyPrecond computes dst = M⁻¹·v, where precond is the inverse diagonal
// (nil meaning identity).
func applyPrecond(dst, v []float64, precond sparse.Diag) {
	if precond == nil {
		copy(dst, v)
		return
	}
	precond.MulVec(dst, v)
}

// normalOperator applies K = AᵀWA + R without materializing it.
type normalOperator struct {
	sys     *assemble.System
	workers int
	rowTmp  []float64 // scratch, length A.Rows
}

func newNormalOperator(sys *assemble.System, workers int) *normalOperator {
	if workers < 1 {
		workers = 1
	}
	return &normalOperator{
		sys:     sys,
		workers: workers,
		rowTmp:  make([]float64, sys.A.Rows),
	}
}

// apply computes dst = K·v.
func (op *normalOperator) apply(dst, v []float64) {
	s := op.sys
	s.A.MulVecParallel(op.rowTmp, v, op.workers)
	for i := range op.rowTmp {
		op.rowTmp[i] *= s.Weights[i]
	}
	s.A.MulTransVec(dst, op.rowTmp)
	for j := range dst {
		dst[j] += s.Reg[j] * v[j]
	}
}

// rightHandSide computes b = AᵀW·rhs + R·x0.
func (op *normalOperator) rightHandSide() []float64 {
	s := op.sys
	for i := range op.rowTmp {
		op.rowTmp[i] = s.Weights[i] * s.RHS[i]
	}
	b := make([]float64, s.A.Cols)
	s.A.MulTransVec(b, op.rowTmp)
	for j := range b {
		b[j] += s.Reg[j] * s.X0[j]
	}
	return b
}

// jacobiInverse returns 1/diag(K).
func (op *normalOperator) jacobiInverse() sparse.Diag {
	s := op.sys
	diag := make(sparse.Diag, s.A.Cols)
	for i := 0; i < s.A.Rows; i++ {
		w := s.Weights[i]
		for k := s.A.Indptr[i]; k < s.A.Indptr[i+1]; k++ {
			a := s.A.Data[k]
			diag[s.A.Indices[k]] += w * a * a
		}
	}
	for j := range diag {
		diag[j] += s.Reg[j]
		if diag[j] > 0 {
			diag[j] = 1 / diag[j]
		} else {
			diag[j] = 1
		}
	}
	return diag
}

// fillStats computes the exit diagnostics reported to the operator.
func (op *normalOperator) fillStats(res *Result, x, b []float64, bnorm float64) {
	s := op.sys

	kx := make([]float64, len(x))
	op.apply(kx, x)
	for j := range kx {
		kx[j] -= b[j]
	}
	res.Precision = sparse.Norm2(kx) / bnorm

	s.A.MulVecParallel(op.rowTmp, x, op.workers)
	sum, sumAbs, maxAbs := 0.0, 0.0, 0.0
	for i := range op.rowTmp {
		e := op.rowTmp[i] - s.RHS[i]
		sum += e * e
		a := math.Abs(e)
		sumAbs += a
		if a > maxAbs {
			maxAbs = a
		}
	}
	res.ErrorNorm = math.Sqrt(sum)
	if s.A.Rows > 0 {
		res.MeanResidual = sumAbs / float64(s.A.Rows)
	}
	res.MaxResidual = maxAbs
}
