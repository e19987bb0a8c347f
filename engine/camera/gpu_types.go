package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-particles/common"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (96 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// The viewport lets the sprite vertex program convert pixel sizes into clip space.
// Size: 96 bytes.
type GPUCameraUniform struct {
	ViewProj       [16]float32 // offset  0: combined view-projection matrix (mat4x4<f32>)
	CameraPosition [3]float32  // offset 64: world-space camera position (vec3<f32>)
	_pad0          float32     // offset 76
	Viewport       [2]float32  // offset 80: viewport size in pixels
	_pad1          [2]float32  // offset 88
}

// NewGPUCameraUniform packs a frame's view state into the uniform layout.
func NewGPUCameraUniform(view common.ViewState) *GPUCameraUniform {
	return &GPUCameraUniform{
		ViewProj:       [16]float32(view.ViewProj),
		CameraPosition: [3]float32(view.Eye),
		Viewport:       [2]float32{float32(view.Width), float32(view.Height)},
	}
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.CameraPosition[i]))
	}
	for i := range 2 {
		binary.LittleEndian.PutUint32(buf[80+i*4:], math.Float32bits(g.Viewport[i]))
	}
	return buf
}
