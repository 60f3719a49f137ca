package matches

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "matches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTileRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tiles := []Tile{
		{ID: "b", Z: 1, Params: []float64{1, 0, 0, 0, 1, 0}},
		{ID: "a", Z: 1, Params: []float64{1, 0, 10, 0, 1, 20}},
		{ID: "c", Z: 2, Params: []float64{1, 0, 0, 0, 1, 0}},
	}
	require.NoError(t, store.AddTiles(ctx, tiles))

	got, err := store.TilesForZ(ctx, []float64{1})
	require.NoError(t, err)

	// Ordered by tile id; this ordering defines the system's columns.
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, []float64{1, 0, 10, 0, 1, 20}, got[0].Params)
}

func TestAddTilesUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddTiles(ctx, []Tile{{ID: "a", Z: 1, Params: []float64{0, 0}}}))
	require.NoError(t, store.AddTiles(ctx, []Tile{{ID: "a", Z: 1, Params: []float64{5, 5}}}))

	got, err := store.TilesForZ(ctx, []float64{1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float64{5, 5}, got[0].Params)
}

func TestZValues(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddTiles(ctx, []Tile{
		{ID: "a", Z: 3, Params: []float64{0}},
		{ID: "b", Z: 1, Params: []float64{0}},
		{ID: "c", Z: 1, Params: []float64{0}},
		{ID: "d", Z: 9, Params: []float64{0}},
	}))

	zvals, err := store.ZValues(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, zvals)
}

func TestMatchesBetween(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddMatches(ctx, []Match{
		{
			PTile: "a", QTile: "b", PZ: 1, QZ: 2,
			PX: []float64{1}, PY: []float64{2},
			QX: []float64{3}, QY: []float64{4},
			W:  []float64{0.5},
		},
		{
			PTile: "c", QTile: "d", PZ: 2, QZ: 1,
			PX: []float64{5}, PY: []float64{6},
			QX: []float64{7}, QY: []float64{8},
			W:  []float64{1},
		},
		{
			PTile: "e", QTile: "f", PZ: 1, QZ: 1,
			PX: []float64{0}, PY: []float64{0},
			QX: []float64{0}, QY: []float64{0},
			W:  []float64{1},
		},
	}))

	// Both orientations of the (1, 2) pair come back; the montage match
	// does not.
	ms, err := store.MatchesBetween(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "a", ms[0].PTile)
	assert.Equal(t, []float64{3}, ms[0].QX)
	assert.Equal(t, "c", ms[1].PTile)

	same, err := store.MatchesBetween(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, same, 1)
	assert.Equal(t, "e", same[0].PTile)
}

func TestNumPoints(t *testing.T) {
	m := Match{PX: []float64{1, 2, 3}, PY: []float64{1, 2, 3}}
	assert.Equal(t, 3, m.NumPoints())
}

func TestAddMatchesRejectsRaggedPoints(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.AddMatches(ctx, []Match{{
		PTile: "a", QTile: "b", PZ: 1, QZ: 1,
		PX: []float64{1, 2, 3}, PY: []float64{1, 2, 3},
		QX: []float64{1, 2, 3}, QY: []float64{1, 2, 3},
		W:  []float64{1},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ragged")
	assert.Contains(t, err.Error(), "a/b")

	// Nothing from the rejected batch lands in the store.
	ms, err := store.MatchesBetween(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestMatchesBetweenRejectsRaggedRow(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	// Rows written by older tools bypass AddMatches validation; the read
	// path has to refuse them rather than hand them to the assembler.
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO matches (p_tile, q_tile, p_z, q_z, points) VALUES (?, ?, ?, ?, ?)
	`, "a", "b", 1.0, 1.0, `{"px":[1,2,3],"py":[1,2,3],"qx":[1,2,3],"qy":[1,2,3],"w":[1]}`)
	require.NoError(t, err)

	_, err = store.MatchesBetween(ctx, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ragged")
}

func TestMatchValidate(t *testing.T) {
	good := Match{
		PX: []float64{1}, PY: []float64{1},
		QX: []float64{1}, QY: []float64{1},
		W:  []float64{1},
	}
	assert.NoError(t, good.Validate())

	bad := good
	bad.W = nil
	assert.Error(t, bad.Validate())
}
