package assemble

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/matches"
)

func testStore(t *testing.T) *matches.Store {
	t.Helper()

	store, err := matches.Open(context.Background(), filepath.Join(t.TempDir(), "matches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAssemblyConfig() config.AssemblyConfig {
	return config.AssemblyConfig{
		Transform:         "affine",
		Depth:             2,
		Workers:           2,
		MinPoints:         2,
		MaxPoints:         100,
		MontageWeight:     1,
		CrossWeight:       1,
		Lambda:            1000,
		TranslationFactor: 1e-5,
	}
}

func identityAffine(dx, dy float64) []float64 {
	return []float64{1, 0, dx, 0, 1, dy}
}

func TestAssembleMontage(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.AddTiles(ctx, []matches.Tile{
		{ID: "s1_t0", Z: 1, Params: identityAffine(0, 0)},
		{ID: "s1_t1", Z: 1, Params: identityAffine(100, 0)},
	}))
	require.NoError(t, store.AddMatches(ctx, []matches.Match{{
		PTile: "s1_t0", QTile: "s1_t1", PZ: 1, QZ: 1,
		PX: []float64{90, 95, 92}, PY: []float64{10, 20, 30},
		QX: []float64{-10, -5, -8}, QY: []float64{10, 20, 30},
		W:  []float64{1, 1, 1},
	}}))

	cfg := testAssemblyConfig()
	asm, err := New(store, &cfg)
	require.NoError(t, err)

	sys, err := asm.Run(ctx, Request{FirstZ: 1, LastZ: 1, SolveType: SolveMontage})
	require.NoError(t, err)

	// 3 points, 2 rows each.
	assert.Equal(t, 6, sys.A.Rows)
	assert.Equal(t, 12, sys.A.Cols)
	assert.Equal(t, 12, sys.Unknowns())
	assert.Equal(t, []string{"s1_t0", "s1_t1"}, sys.TileIDs)
	assert.Equal(t, 1, sys.MatchesUsed)
	assert.Len(t, sys.Weights, 6)
	assert.Len(t, sys.RHS, 6)
	assert.Len(t, sys.Reg, 12)
	assert.Len(t, sys.X0, 12)
	assert.Equal(t, "affine", sys.Transform)
}

func TestAssembleDropsUnmatchedTiles(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.AddTiles(ctx, []matches.Tile{
		{ID: "t0", Z: 1, Params: identityAffine(0, 0)},
		{ID: "t1", Z: 1, Params: identityAffine(100, 0)},
		{ID: "t_isolated", Z: 1, Params: identityAffine(500, 500)},
	}))
	require.NoError(t, store.AddMatches(ctx, []matches.Match{{
		PTile: "t0", QTile: "t1", PZ: 1, QZ: 1,
		PX: []float64{1, 2}, PY: []float64{1, 2},
		QX: []float64{1, 2}, QY: []float64{1, 2},
		W:  []float64{1, 1},
	}}))

	cfg := testAssemblyConfig()
	asm, err := New(store, &cfg)
	require.NoError(t, err)

	sys, err := asm.Run(ctx, Request{FirstZ: 1, LastZ: 1, SolveType: SolveMontage})
	require.NoError(t, err)

	assert.Equal(t, []string{"t0", "t1"}, sys.TileIDs)
	assert.Equal(t, 3, sys.TilesTotal)
	assert.Equal(t, 12, sys.A.Cols)
}

func TestAssemble3DUsesCrossSections(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.AddTiles(ctx, []matches.Tile{
		{ID: "z1_t0", Z: 1, Params: identityAffine(0, 0)},
		{ID: "z2_t0", Z: 2, Params: identityAffine(0, 0)},
	}))
	require.NoError(t, store.AddMatches(ctx, []matches.Match{{
		PTile: "z1_t0", QTile: "z2_t0", PZ: 1, QZ: 2,
		PX: []float64{1, 2}, PY: []float64{3, 4},
		QX: []float64{1, 2}, QY: []float64{3, 4},
		W:  []float64{1, 1},
	}}))

	cfg := testAssemblyConfig()
	asm, err := New(store, &cfg)
	require.NoError(t, err)

	// Montage ignores the cross-section match entirely.
	_, err = asm.Run(ctx, Request{FirstZ: 1, LastZ: 2, SolveType: SolveMontage})
	assert.Error(t, err)

	sys, err := asm.Run(ctx, Request{FirstZ: 1, LastZ: 2, SolveType: Solve3D})
	require.NoError(t, err)
	assert.Equal(t, 4, sys.A.Rows)
	assert.Equal(t, []float64{1, 2}, sys.ZVals)
}

func TestAssembleRejectsEmptyRange(t *testing.T) {
	store := testStore(t)

	cfg := testAssemblyConfig()
	asm, err := New(store, &cfg)
	require.NoError(t, err)

	_, err = asm.Run(context.Background(), Request{FirstZ: 1, LastZ: 5, SolveType: Solve3D})
	assert.Error(t, err)
}

func TestAssembleReportsRaggedStoreRow(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "matches.db")

	store, err := matches.Open(ctx, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.AddTiles(ctx, []matches.Tile{
		{ID: "t0", Z: 1, Params: identityAffine(0, 0)},
		{ID: "t1", Z: 1, Params: identityAffine(100, 0)},
	}))

	// A corrupted row with mismatched point arrays must surface as an
	// assembly error, not crash a chunk worker.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.ExecContext(ctx, `
		INSERT INTO matches (p_tile, q_tile, p_z, q_z, points) VALUES (?, ?, ?, ?, ?)
	`, "t0", "t1", 1.0, 1.0, `{"px":[1,2,3],"py":[1,2,3],"qx":[1,2,3],"qy":[1,2,3],"w":[1]}`)
	require.NoError(t, err)

	cfg := testAssemblyConfig()
	asm, err := New(store, &cfg)
	require.NoError(t, err)

	_, err = asm.Run(ctx, Request{FirstZ: 1, LastZ: 1, SolveType: SolveMontage})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ragged")
}

func TestAssembleSkipsSparseMatches(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.AddTiles(ctx, []matches.Tile{
		{ID: "t0", Z: 1, Params: identityAffine(0, 0)},
		{ID: "t1", Z: 1, Params: identityAffine(100, 0)},
	}))
	// One point is below the configured minimum.
	require.NoError(t, store.AddMatches(ctx, []matches.Match{{
		PTile: "t0", QTile: "t1", PZ: 1, QZ: 1,
		PX: []float64{1}, PY: []float64{1},
		QX: []float64{1}, QY: []float64{1},
		W:  []float64{1},
	}}))

	cfg := testAssemblyConfig()
	asm, err := New(store, &cfg)
	require.NoError(t, err)

	_, err = asm.Run(ctx, Request{FirstZ: 1, LastZ: 1, SolveType: SolveMontage})
	assert.Error(t, err)
}
