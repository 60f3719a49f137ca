// Package matches provides the point-match store: tiles with their initial
// transforms and the point correspondences between tile pairs.
package matches

import "fmt"

// Tile is one image tile in a section, with its initial transform parameters.
// Params length depends on the transform model: 6 for affine
// [a b c d e f], 2 for translation [tx ty].
type Tile struct {
	ID     string
	Z      float64
	Params []float64
}

// Match holds the point correspondences between two tiles.
// PX/PY are point coordinates in the P tile's frame, QX/QY in the Q tile's,
// and W per-point weights. All slices have equal length.
type Match struct {
	PTile string
	QTile string
	PZ    float64
	QZ    float64
	PX    []float64
	PY    []float64
	QX    []float64
	QY    []float64
	W     []float64
}

// NumPoints returns the number of correspondence points.
func (m *Match) NumPoints() int {
	return len(m.PX)
}

// Validate checks that the point arrays all have the same length. Ragged
// arrays cannot be turned into rows.
func (m *Match) Validate() error {
	n := len(m.PX)
	if len(m.PY) != n || len(m.QX) != n || len(m.QY) != n || len(m.W) != n {
		return fmt.Errorf("match %s/%s has ragged point arrays (px=%d py=%d qx=%d qy=%d w=%d)",
			m.PTile, m.QTile, len(m.PX), len(m.PY), len(m.QX), len(m.QY), len(m.W))
	}
	return nil
}
