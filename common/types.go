// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TexelChannels is the number of float channels stored per particle cell: x, y, z and age.
const TexelChannels = 4

// GridStagingData holds a square grid of RGBA32F texels pending upload to a grid target.
type GridStagingData struct {
	// Texels is the row-major texel data, TexelChannels floats per cell.
	Texels []float32
	// Size is the side length of the grid.
	Size int
}

// Cells returns the number of cells held by the staging data.
func (g GridStagingData) Cells() int {
	return g.Size * g.Size
}

// Texel returns the four channels stored at the given cell index.
func (g GridStagingData) Texel(index int) mgl32.Vec4 {
	o := index * TexelChannels
	return mgl32.Vec4{g.Texels[o], g.Texels[o+1], g.Texels[o+2], g.Texels[o+3]}
}

// ViewState is the per-frame camera state handed to the renderer when a frame begins.
type ViewState struct {
	// ViewProj is the combined projection * view matrix.
	ViewProj mgl32.Mat4
	// Eye is the camera position in world space.
	Eye mgl32.Vec3
	// Width and Height are the viewport dimensions in pixels.
	Width, Height int
}

// Sprite is one screen-space point sprite produced by the sprite pass of the software backend.
type Sprite struct {
	// Position is the sprite centre in pixels, origin top-left.
	Position mgl32.Vec2
	// Depth is the normalized device depth of the sprite centre.
	Depth float32
	// Size is the sprite diameter in pixels.
	Size float32
	// Color is the straight-alpha RGBA colour of the sprite.
	Color mgl32.Vec4
}

// Uniform is any GPU uniform block that can serialize itself for upload.
// CPU kernels of the software backend receive the same value and read its fields directly.
type Uniform interface {
	Marshal() []byte
}
