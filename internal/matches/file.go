package matches

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Collection is a batch of tiles and matches read from an interchange file.
type Collection struct {
	Tiles   []Tile
	Matches []Match
}

// File shapes. Tiles carry their initial transform parameters; matches carry
// flat point arrays. Per-point weights are optional and default to 1.
type tileDoc struct {
	ID     string    `json:"tile_id"`
	Z      float64   `json:"z"`
	Params []float64 `json:"params"`
}

type matchDoc struct {
	PTile string    `json:"p_tile"`
	QTile string    `json:"q_tile"`
	PZ    float64   `json:"p_z"`
	QZ    float64   `json:"q_z"`
	PX    []float64 `json:"px"`
	PY    []float64 `json:"py"`
	QX    []float64 `json:"qx"`
	QY    []float64 `json:"qy"`
	W     []float64 `json:"w,omitempty"`
}

type collectionDoc struct {
	Tiles   []tileDoc  `json:"tiles"`
	Matches []matchDoc `json:"matches"`
}

// ReadFile loads a tile and point-match collection from a JSON file.
func ReadFile(path string) (*Collection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s; %w", path, err)
	}

	var doc collectionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s; %w", path, err)
	}

	c := &Collection{
		Tiles:   make([]Tile, 0, len(doc.Tiles)),
		Matches: make([]Match, 0, len(doc.Matches)),
	}

	for i, td := range doc.Tiles {
		if td.ID == "" {
			return nil, fmt.Errorf("%s: tile %d has no tile_id", path, i)
		}
		if len(td.Params) == 0 {
			return nil, fmt.Errorf("%s: tile %s has no transform params", path, td.ID)
		}
		c.Tiles = append(c.Tiles, Tile{ID: td.ID, Z: td.Z, Params: td.Params})
	}

	for i, md := range doc.Matches {
		if md.PTile == "" || md.QTile == "" {
			return nil, fmt.Errorf("%s: match %d is missing a tile id", path, i)
		}
		m := Match{
			PTile: md.PTile, QTile: md.QTile,
			PZ: md.PZ, QZ: md.QZ,
			PX: md.PX, PY: md.PY,
			QX: md.QX, QY: md.QY,
			W:  md.W,
		}
		if len(m.W) == 0 && len(m.PX) > 0 {
			m.W = make([]float64, len(m.PX))
			for k := range m.W {
				m.W[k] = 1
			}
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s; %w", path, err)
		}
		c.Matches = append(c.Matches, m)
	}

	return c, nil
}

// Ingest writes a collection into the store.
func (s *Store) Ingest(ctx context.Context, c *Collection) error {
	if len(c.Tiles) > 0 {
		if err := s.AddTiles(ctx, c.Tiles); err != nil {
			return err
		}
	}
	if len(c.Matches) > 0 {
		if err := s.AddMatches(ctx, c.Matches); err != nil {
			return err
		}
	}
	return nil
}
