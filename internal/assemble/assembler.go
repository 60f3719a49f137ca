// Package assemble builds the sparse alignment system from the point-match
// store: one CSR chunk per section pair, assembled concurrently and
// concatenated into a single regularized least-squares problem.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/matches"
	"github.com/emalign/emsolve/internal/metrics"
	"github.com/emalign/emsolve/internal/sparse"
)

// SolveType selects which section pairs enter the system.
type SolveType string

const (
	// SolveMontage uses only same-section pairs. Sections stay independent,
	// so they can be assembled and solved jointly as a block-diagonal system.
	SolveMontage SolveType = "montage"
	// Solve3D uses all pairs within the configured depth.
	Solve3D SolveType = "3d"
)

// Request describes one assembly run.
type Request struct {
	FirstZ    float64
	LastZ     float64
	SolveType SolveType
}

// Assembler builds systems from a point-match store.
type Assembler struct {
	store   *matches.Store
	cfg     *config.AssemblyConfig
	model   Model
	logger  *slog.Logger
	workers int
}

// Option configures the assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// New creates an assembler for the given store and assembly config.
func New(store *matches.Store, cfg *config.AssemblyConfig, opts ...Option) (*Assembler, error) {
	model, err := ModelFor(cfg.Transform)
	if err != nil {
		return nil, err
	}

	a := &Assembler{
		store:   store,
		cfg:     cfg,
		model:   model,
		logger:  slog.Default(),
		workers: cfg.Workers,
	}
	if a.workers < 1 {
		a.workers = 1
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// sectionPair is one unit of chunk-assembly work.
type sectionPair struct {
	z1, z2 float64
}

// Run assembles the system for the requested section range.
func (a *Assembler) Run(ctx context.Context, req Request) (*System, error) {
	start := time.Now()

	zvals, err := a.store.ZValues(ctx, req.FirstZ, req.LastZ)
	if err != nil {
		return nil, err
	}
	if len(zvals) == 0 {
		return nil, fmt.Errorf("no sections in range [%g, %g]", req.FirstZ, req.LastZ)
	}

	tiles, err := a.store.TilesForZ(ctx, zvals)
	if err != nil {
		return nil, err
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles in range [%g, %g]", req.FirstZ, req.LastZ)
	}

	colIndex := make(map[string]int, len(tiles))
	for i, t := range tiles {
		colIndex[t.ID] = i
	}

	pairs := a.sectionPairs(zvals, req.SolveType)
	a.logger.Info("assembly started",
		"sections", len(zvals),
		"tiles", len(tiles),
		"pairs", len(pairs),
		"transform", a.model.Name(),
		"workers", a.workers)

	// One chunk per pair, built concurrently. Results land in their own
	// slot so the concatenation order stays deterministic.
	chunks := make([]*chunk, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, pair := range pairs {
		g.Go(func() error {
			c, err := a.buildChunk(gctx, pair, colIndex, len(tiles))
			if err != nil {
				return err
			}
			chunks[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := concatChunks(chunks, len(tiles))
	nrows := len(merged.indptr) - 1
	if nrows == 0 {
		return nil, fmt.Errorf("no usable matches in range [%g, %g]", req.FirstZ, req.LastZ)
	}

	sys, err := a.finalize(tiles, merged, zvals)
	if err != nil {
		return nil, err
	}

	metrics.AssemblyDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("assembly complete",
		"rows", sys.A.Rows,
		"unknowns", sys.Unknowns(),
		"nnz", sys.A.NNZ(),
		"matches", sys.MatchesUsed,
		"tiles_used", len(sys.TileIDs),
		"tiles_dropped", sys.TilesTotal-len(sys.TileIDs),
		"duration", time.Since(start))

	return sys, nil
}

// sectionPairs lists the pairs to assemble, ordered by (z1, dz).
func (a *Assembler) sectionPairs(zvals []float64, solveType SolveType) []sectionPair {
	depth := a.cfg.Depth
	if solveType == SolveMontage {
		depth = 0
	}

	var pairs []sectionPair
	for i, z1 := range zvals {
		for j := i; j < len(zvals); j++ {
			z2 := zvals[j]
			if int(math.Abs(z2-z1)) > depth {
				break
			}
			pairs = append(pairs, sectionPair{z1: z1, z2: z2})
		}
	}
	return pairs
}

// buildChunk assembles the CSR block for one section pair.
func (a *Assembler) buildChunk(ctx context.Context, pair sectionPair, colIndex map[string]int, ntiles int) (*chunk, error) {
	t0 := time.Now()

	ms, err := a.store.MatchesBetween(ctx, pair.z1, pair.z2)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches for (%g, %g); %w", pair.z1, pair.z2, err)
	}

	c := &chunk{
		z1:        pair.z1,
		z2:        pair.z2,
		tilesUsed: make([]bool, ntiles),
	}
	if len(ms) == 0 {
		return c, nil
	}

	pairWeight := tilepairWeight(pair.z1, pair.z2, a.cfg)
	dof := int64(a.model.DOF())
	rowsPerPoint := a.model.RowsPerPoint()

	rowsHint := len(ms) * a.cfg.MaxPoints * rowsPerPoint
	b := newRowBuilder(rowsHint, rowsHint*a.model.NNZPerRow())

	for i := range ms {
		m := &ms[i]

		pi, ok := colIndex[m.PTile]
		if !ok {
			continue
		}
		qi, ok := colIndex[m.QTile]
		if !ok {
			continue
		}

		idx := selectPoints(m.NumPoints(), a.cfg.MinPoints, a.cfg.MaxPoints)
		if idx == nil {
			continue
		}

		pBase := int64(pi) * dof
		qBase := int64(qi) * dof
		used := false
		for _, k := range idx {
			w := pairWeight * m.W[k]
			if w <= 0 {
				continue
			}
			a.model.AppendPoint(b, pBase, qBase, m.PX[k], m.PY[k], m.QX[k], m.QY[k])
			b.weightRows(rowsPerPoint, w)
			used = true
		}
		if used {
			c.tilesUsed[pi] = true
			c.tilesUsed[qi] = true
			c.matches++
		}
	}

	c.data = b.data
	c.indices = b.indices
	c.indptr = b.indptr
	c.rhs = b.rhs
	c.weights = b.weights

	metrics.ChunksAssembled.Inc()
	metrics.MatchesLoaded.Add(float64(len(ms)))

	a.logger.Debug("chunk assembled",
		"z1", pair.z1,
		"z2", pair.z2,
		"matches", c.matches,
		"rows", b.rows(),
		"duration", time.Since(t0))

	return c, nil
}

// selectPoints returns the point indices to use from a match with n points.
// Matches below the minimum are rejected; above the maximum an evenly spaced
// subsample keeps the system bounded.
func selectPoints(n, min, max int) []int {
	if n < min {
		return nil
	}
	if n <= max {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	idx := make([]int, max)
	for i := 0; i < max; i++ {
		idx[i] = i * n / max
	}
	return idx
}

// finalize drops unused tile columns and attaches regularization and the
// initial solution vector.
func (a *Assembler) finalize(tiles []matches.Tile, merged *chunk, zvals []float64) (*System, error) {
	dof := a.model.DOF()
	ntiles := len(tiles)
	nrows := len(merged.indptr) - 1

	full, err := sparse.NewCSR(nrows, ntiles*dof, merged.data, merged.indices, merged.indptr)
	if err != nil {
		return nil, fmt.Errorf("assembled system is inconsistent; %w", err)
	}

	keepCols := make([]bool, ntiles*dof)
	var kept []matches.Tile
	for i, t := range tiles {
		if !merged.tilesUsed[i] {
			continue
		}
		for d := 0; d < dof; d++ {
			keepCols[i*dof+d] = true
		}
		kept = append(kept, t)
	}

	A, err := full.DropColumns(keepCols)
	if err != nil {
		return nil, fmt.Errorf("failed to drop unused tile columns; %w", err)
	}

	reg := make(sparse.Diag, 0, len(kept)*dof)
	x0 := make([]float64, 0, len(kept)*dof)
	tileIDs := make([]string, 0, len(kept))
	tileReg := a.model.Regularization(a.cfg.Lambda, a.cfg.TranslationFactor)
	for _, t := range kept {
		vec, err := a.model.SolveVector(t)
		if err != nil {
			return nil, err
		}
		reg = append(reg, tileReg...)
		x0 = append(x0, vec...)
		tileIDs = append(tileIDs, t.ID)
	}

	return &System{
		A:           A,
		Weights:     sparse.Diag(merged.weights),
		Reg:         reg,
		RHS:         merged.rhs,
		X0:          x0,
		Transform:   a.model.Name(),
		TileIDs:     tileIDs,
		DOF:         dof,
		ZVals:       zvals,
		MatchesUsed: merged.matches,
		TilesTotal:  ntiles,
	}, nil
}
