package matches

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store provides access to the SQLite point-match database.
type Store struct {
	db   *sql.DB
	path string
}

// pointSet is the JSON shape of a match's point arrays.
type pointSet struct {
	PX []float64 `json:"px"`
	PY []float64 `json:"py"`
	QX []float64 `json:"qx"`
	QY []float64 `json:"qy"`
	W  []float64 `json:"w"`
}

// Open opens (creating if necessary) the point-match store at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %q; %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store; %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they do not exist.
func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tiles (
			tile_id TEXT PRIMARY KEY,
			z       REAL NOT NULL,
			params  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tiles_z ON tiles(z);

		CREATE TABLE IF NOT EXISTS matches (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			p_tile TEXT NOT NULL,
			q_tile TEXT NOT NULL,
			p_z    REAL NOT NULL,
			q_z    REAL NOT NULL,
			points TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_z ON matches(p_z, q_z);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize store schema; %w", err)
	}
	return nil
}

// AddTiles inserts or replaces tiles.
func (s *Store) AddTiles(ctx context.Context, tiles []Tile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	for _, t := range tiles {
		params, err := json.Marshal(t.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal params for tile %s; %w", t.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO tiles (tile_id, z, params) VALUES (?, ?, ?)
		`, t.ID, t.Z, string(params))
		if err != nil {
			return fmt.Errorf("failed to insert tile %s; %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tiles; %w", err)
	}
	return nil
}

// AddMatches inserts matches.
func (s *Store) AddMatches(ctx context.Context, ms []Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	for i := range ms {
		m := &ms[i]
		if err := m.Validate(); err != nil {
			return err
		}
		pts, err := json.Marshal(pointSet{PX: m.PX, PY: m.PY, QX: m.QX, QY: m.QY, W: m.W})
		if err != nil {
			return fmt.Errorf("failed to marshal points for %s/%s; %w", m.PTile, m.QTile, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO matches (p_tile, q_tile, p_z, q_z, points) VALUES (?, ?, ?, ?, ?)
		`, m.PTile, m.QTile, m.PZ, m.QZ, string(pts))
		if err != nil {
			return fmt.Errorf("failed to insert match %s/%s; %w", m.PTile, m.QTile, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches; %w", err)
	}
	return nil
}

// ZValues returns the distinct section z values present in [first, last],
// in ascending order.
func (s *Store) ZValues(ctx context.Context, first, last float64) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT z FROM tiles WHERE z >= ? AND z <= ? ORDER BY z ASC
	`, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to query z values; %w", err)
	}
	defer rows.Close()

	var zvals []float64
	for rows.Next() {
		var z float64
		if err := rows.Scan(&z); err != nil {
			return nil, fmt.Errorf("failed to scan z value; %w", err)
		}
		zvals = append(zvals, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating z values; %w", err)
	}
	return zvals, nil
}

// TilesForZ returns all tiles in the given sections, ordered by tile id.
// The ordering is the column ordering of the assembled system.
func (s *Store) TilesForZ(ctx context.Context, zvals []float64) ([]Tile, error) {
	if len(zvals) == 0 {
		return nil, nil
	}

	zmin, zmax := zvals[0], zvals[0]
	for _, z := range zvals[1:] {
		if z < zmin {
			zmin = z
		}
		if z > zmax {
			zmax = z
		}
	}
	inRange := make(map[float64]bool, len(zvals))
	for _, z := range zvals {
		inRange[z] = true
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tile_id, z, params FROM tiles WHERE z >= ? AND z <= ? ORDER BY tile_id ASC
	`, zmin, zmax)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiles; %w", err)
	}
	defer rows.Close()

	var tiles []Tile
	for rows.Next() {
		var t Tile
		var params string
		if err := rows.Scan(&t.ID, &t.Z, &params); err != nil {
			return nil, fmt.Errorf("failed to scan tile; %w", err)
		}
		if !inRange[t.Z] {
			continue
		}
		if err := json.Unmarshal([]byte(params), &t.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params for tile %s; %w", t.ID, err)
		}
		tiles = append(tiles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tiles; %w", err)
	}
	return tiles, nil
}

// MatchesBetween returns all matches between sections z1 and z2, in either
// orientation.
func (s *Store) MatchesBetween(ctx context.Context, z1, z2 float64) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p_tile, q_tile, p_z, q_z, points FROM matches
		WHERE (p_z = ? AND q_z = ?) OR (p_z = ? AND q_z = ?)
		ORDER BY id ASC
	`, z1, z2, z2, z1)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches; %w", err)
	}
	defer rows.Close()

	var ms []Match
	for rows.Next() {
		var m Match
		var pts string
		if err := rows.Scan(&m.PTile, &m.QTile, &m.PZ, &m.QZ, &pts); err != nil {
			return nil, fmt.Errorf("failed to scan match; %w", err)
		}
		var ps pointSet
		if err := json.Unmarshal([]byte(pts), &ps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal points for %s/%s; %w", m.PTile, m.QTile, err)
		}
		m.PX, m.PY, m.QX, m.QY, m.W = ps.PX, ps.PY, ps.QX, ps.QY, ps.W
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("store row is invalid; %w", err)
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches; %w", err)
	}
	return ms, nil
}
