package assemble

// chunk is the CSR block assembled from one section pair.
type chunk struct {
	z1, z2    float64
	data      []float64
	indices   []int64
	indptr    []int64
	rhs       []float64
	weights   []float64
	tilesUsed []bool
	matches   int
}

// empty reports whether the chunk contributed no rows.
func (c *chunk) empty() bool {
	return c == nil || len(c.data) == 0
}

// concatChunks merges chunks in order into one CSR block.
// Row pointers are shifted by the running nonzero count, the same way the
// per-pair blocks stack in the full system.
func concatChunks(chunks []*chunk, ntiles int) *chunk {
	out := &chunk{
		indptr:    []int64{0},
		tilesUsed: make([]bool, ntiles),
	}

	for _, c := range chunks {
		if c != nil {
			for i, used := range c.tilesUsed {
				if used {
					out.tilesUsed[i] = true
				}
			}
			out.matches += c.matches
		}
		if c.empty() {
			continue
		}

		offset := out.indptr[len(out.indptr)-1]
		out.data = append(out.data, c.data...)
		out.indices = append(out.indices, c.indices...)
		out.rhs = append(out.rhs, c.rhs...)
		out.weights = append(out.weights, c.weights...)
		for _, p := range c.indptr[1:] {
			out.indptr = append(out.indptr, p+offset)
		}
	}

	return out
}
