package kernel

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/stat/distuv"
)

// SeedGrid fills a size x size grid with particles sampled uniformly and independently inside the
// box [origin, origin+extent] (per axis, either orientation), all with age 0.
//
// Parameters:
//   - src: random source; callers pass a seeded source for reproducible grids
//   - size: grid side length
//   - origin: spawn origin
//   - extent: spawn jitter box, components may be negative or zero
//
// Returns:
//   - common.GridStagingData: the seeded grid ready for upload
func SeedGrid(src rand.Source, size int, origin, extent mgl32.Vec3) common.GridStagingData {
	var axes [3]distuv.Uniform
	for i := range axes {
		lo, hi := float64(origin[i]), float64(origin[i]+extent[i])
		if hi < lo {
			lo, hi = hi, lo
		}
		axes[i] = distuv.Uniform{Min: lo, Max: hi, Src: src}
	}

	grid := common.GridStagingData{
		Texels: make([]float32, size*size*common.TexelChannels),
		Size:   size,
	}
	for j := range size {
		for i := range size {
			o := (i + j*size) * common.TexelChannels
			for a := range axes {
				grid.Texels[o+a] = float32(axes[a].Rand())
			}
			grid.Texels[o+3] = 0
		}
	}
	return grid
}

// CoordTable builds the fixed per-particle lookup coordinates, one (u, v) pair per cell in
// row-major order. Cell (i, j) maps to ((i+0.5)/size, (j+0.5)/size), the centre of its texel.
func CoordTable(size int) []float32 {
	coords := make([]float32, 0, size*size*2)
	n := float32(size)
	for j := range size {
		for i := range size {
			coords = append(coords, (float32(i)+0.5)/n, (float32(j)+0.5)/n)
		}
	}
	return coords
}
