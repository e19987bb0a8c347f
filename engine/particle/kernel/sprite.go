package kernel

import (
	"math"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
)

// minCameraDistance keeps the perspective size term finite for particles at the eye position.
const minCameraDistance = 1e-4

// SpriteSize computes the sprite diameter in pixels.
// The perspective size basePointSize / cameraDistance is clamped to [MinSize, MaxSize] and then
// shrunk toward zero inside NearRadius of the target. A non-positive NearRadius yields MinSize.
//
// Parameters:
//   - params: the sprite uniform block
//   - cameraDistance: distance from the eye to the particle
//   - targetDistance: distance from the particle to the shrink target
//
// Returns:
//   - float32: the sprite diameter in pixels
func SpriteSize(params *GPUSpriteParams, cameraDistance, targetDistance float32) float32 {
	if params.NearRadius <= 0 {
		return params.MinSize
	}
	size := common.Clamp(params.BaseSize/max(cameraDistance, minCameraDistance), params.MinSize, params.MaxSize)

	falloff := common.Smoothstep(0, 1, targetDistance/params.NearRadius)
	if params.ShrinkSpeed > 0 {
		falloff = float32(math.Pow(float64(max(falloff, 1e-6)), float64(params.ShrinkSpeed)))
	} else {
		falloff = 1
	}
	return size * falloff
}

// SpriteColor computes the straight-alpha colour of the particle at a lookup coordinate.
// Each channel is jittered by ColorVariation * (hash - 0.5) and the result clamped into gamut.
func SpriteColor(params *GPUSpriteParams, coord mgl32.Vec2) mgl32.Vec4 {
	base := colorful.Color{
		R: float64(params.Color[0]),
		G: float64(params.Color[1]),
		B: float64(params.Color[2]),
	}
	if params.ColorVariation != 0 {
		jitter := Hash3(CellIndex(coord, int(params.GridSize)), colorSalt)
		v := float64(params.ColorVariation)
		base.R += v * float64(jitter[0]-0.5)
		base.G += v * float64(jitter[1]-0.5)
		base.B += v * float64(jitter[2]-0.5)
	}
	c := base.Clamped()
	return mgl32.Vec4{float32(c.R), float32(c.G), float32(c.B), 1}
}

// SpriteTexel is the CPU rendition of the sprite vertex program for the software backend.
// It has the signature of pipeline.SpriteKernel and reports false for particles behind the camera.
func SpriteTexel(u common.Uniform, texel mgl32.Vec4, coord mgl32.Vec2, view common.ViewState) (common.Sprite, bool) {
	params, ok := u.(*GPUSpriteParams)
	if !ok {
		return common.Sprite{}, false
	}
	p := texel.Vec3()
	screen, depth, ok := common.ProjectPoint(view.ViewProj, p, view.Width, view.Height)
	if !ok {
		return common.Sprite{}, false
	}
	size := SpriteSize(params, p.Sub(view.Eye).Len(), p.Sub(mgl32.Vec3(params.TargetPos)).Len())
	return common.Sprite{
		Position: screen,
		Depth:    depth,
		Size:     size,
		Color:    SpriteColor(params, coord),
	}, true
}
