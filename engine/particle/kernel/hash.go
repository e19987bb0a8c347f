package kernel

import "github.com/go-gl/mathgl/mgl32"

// Salts separating the independent hash streams drawn from one cell index.
const (
	colorSalt   uint32 = 0x68e31da4
	respawnSalt uint32 = 0xb5297a4d
)

// PCG is the 32-bit permuted congruential hash used by both the CPU kernels and the WGSL programs.
// Integer arithmetic wraps identically on both sides, so a cell hashes to the same value everywhere.
func PCG(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// Hash01 maps a hash input onto [0, 1].
func Hash01(v uint32) float32 {
	return float32(PCG(v)) / 4294967295.0
}

// Hash3 draws three chained hash values in [0, 1] for a cell index and a salt.
func Hash3(index, salt uint32) mgl32.Vec3 {
	hx := PCG(index ^ PCG(salt))
	hy := PCG(hx)
	hz := PCG(hy)
	return mgl32.Vec3{
		float32(hx) / 4294967295.0,
		float32(hy) / 4294967295.0,
		float32(hz) / 4294967295.0,
	}
}

// CellIndex converts a fixed per-particle lookup coordinate back into its row-major cell index.
func CellIndex(coord mgl32.Vec2, size int) uint32 {
	n := float32(size)
	i := int(coord[0] * n)
	j := int(coord[1] * n)
	i = min(max(i, 0), size-1)
	j = min(max(j, 0), size-1)
	return uint32(i + j*size)
}
