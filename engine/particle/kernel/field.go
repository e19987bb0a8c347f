package kernel

import (
	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"
)

const (
	// curlEpsilon is the central-difference step used to differentiate the noise potential.
	curlEpsilon = 0.1
	// timeScroll is how fast the noise potential drifts along z per second of simulation time.
	timeScroll = 0.1
)

// Offsets that decorrelate the three potential components when a single noise source is sampled.
var potentialOffsets = [3]mgl32.Vec3{
	{0, 0, 0},
	{31.416, -47.853, 12.793},
	{-19.351, 7.294, 101.117},
}

// CurlField is a divergence-free vector field built as the curl of a 3-component simplex noise potential.
type CurlField struct {
	noise opensimplex.Noise
}

// NewCurlField creates a curl field over an OpenSimplex potential with the given seed.
func NewCurlField(seed int64) *CurlField {
	return &CurlField{noise: opensimplex.New(seed)}
}

func (c *CurlField) potential(p mgl32.Vec3) mgl32.Vec3 {
	var out mgl32.Vec3
	for i, o := range potentialOffsets {
		q := p.Add(o)
		out[i] = float32(c.noise.Eval3(float64(q[0]), float64(q[1]), float64(q[2])))
	}
	return out
}

// Curl returns the curl of the noise potential at p using central differences.
func (c *CurlField) Curl(p mgl32.Vec3) mgl32.Vec3 {
	dx := mgl32.Vec3{curlEpsilon, 0, 0}
	dy := mgl32.Vec3{0, curlEpsilon, 0}
	dz := mgl32.Vec3{0, 0, curlEpsilon}

	px0, px1 := c.potential(p.Sub(dx)), c.potential(p.Add(dx))
	py0, py1 := c.potential(p.Sub(dy)), c.potential(p.Add(dy))
	pz0, pz1 := c.potential(p.Sub(dz)), c.potential(p.Add(dz))

	curl := mgl32.Vec3{
		(py1[2] - py0[2]) - (pz1[1] - pz0[1]),
		(pz1[0] - pz0[0]) - (px1[2] - px0[2]),
		(px1[1] - px0[1]) - (py1[0] - py0[0]),
	}
	return curl.Mul(1 / (2 * curlEpsilon))
}

// AdvanceTexel moves one particle forward by params.DeltaTime.
// The curl contribution is limited to unit length before scaling, so the particle speed never
// exceeds CurlScale + |Drift|. A positive time step may respawn the particle into the spawn box.
//
// Parameters:
//   - params: the simulation uniform block
//   - field: curl field sampled at the particle position; may be nil when CurlScale is zero
//   - texel: the previous (x, y, z, age) state
//   - index: row-major cell index of the particle
//
// Returns:
//   - mgl32.Vec4: the next (x, y, z, age) state
func AdvanceTexel(params *GPUSimParams, field *CurlField, texel mgl32.Vec4, index uint32) mgl32.Vec4 {
	p := texel.Vec3()
	age := texel[3]
	dt := params.DeltaTime
	drift := mgl32.Vec3(params.Drift)

	velocity := drift
	if params.CurlScale != 0 && field != nil {
		sample := p.Mul(params.NoiseScale).Add(mgl32.Vec3{0, 0, params.Time * timeScroll})
		curl := common.ClampLength(field.Curl(sample), 1).Mul(params.CurlScale)
		velocity = velocity.Add(curl)
	}

	next := p.Add(velocity.Mul(dt))
	age += dt

	if params.Respawn != 0 && dt > 0 && ShouldRespawn(next, mgl32.Vec3(params.SpawnOrigin), drift, mgl32.Vec3(params.EndPos), params.RespawnRadius) {
		jitter := Hash3(index, respawnSalt^uint32(age*1000))
		extent := mgl32.Vec3(params.SpawnExtent)
		next = mgl32.Vec3(params.SpawnOrigin).Add(mgl32.Vec3{
			jitter[0] * extent[0],
			jitter[1] * extent[1],
			jitter[2] * extent[2],
		})
		age = 0
	}
	return next.Vec4(age)
}

// ShouldRespawn reports whether a particle at p has reached the travel endpoint, either by entering
// its radius or by crossing the plane through end perpendicular to the drift direction.
// The plane only applies while the spawn origin lies on the near side of it; a spawn box placed
// past the plane would otherwise respawn every particle on every step.
func ShouldRespawn(p, origin, drift, end mgl32.Vec3, radius float32) bool {
	toEnd := p.Sub(end)
	if radius > 0 && toEnd.Len() < radius {
		return true
	}
	if drift.Len() == 0 || origin.Sub(end).Dot(drift) >= 0 {
		return false
	}
	return toEnd.Dot(drift) > 0
}

// NewFieldKernel returns the CPU rendition of the field update program for the software backend.
// The returned function has the signature of pipeline.GridKernel.
func NewFieldKernel(seed int64) func(u common.Uniform, src []float32, size, index int) mgl32.Vec4 {
	field := NewCurlField(seed)
	return func(u common.Uniform, src []float32, size, index int) mgl32.Vec4 {
		params, ok := u.(*GPUSimParams)
		if !ok {
			return texelAt(src, index)
		}
		return AdvanceTexel(params, field, texelAt(src, index), uint32(index))
	}
}

func texelAt(src []float32, index int) mgl32.Vec4 {
	o := index * common.TexelChannels
	return mgl32.Vec4{src[o], src[o+1], src[o+2], src[o+3]}
}
