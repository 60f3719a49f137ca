package assemble

import (
	"math"

	"github.com/emalign/emsolve/internal/config"
)

// tilepairWeight returns the weight factor for a section pair.
// Same-section pairs use the montage weight; cross-section pairs use the
// cross weight, optionally decayed by section distance. An explicit
// depth-weight table, when configured, overrides both.
func tilepairWeight(z1, z2 float64, cfg *config.AssemblyConfig) float64 {
	dz := int(math.Abs(z1 - z2))

	if len(cfg.DepthWeights) > 0 {
		if dz < len(cfg.DepthWeights) {
			return cfg.DepthWeights[dz]
		}
		return 0
	}

	if z1 == z2 {
		return cfg.MontageWeight
	}

	w := cfg.CrossWeight
	if cfg.InverseDZ {
		w = w / (math.Abs(z2-z1) + 1)
	}
	return w
}
