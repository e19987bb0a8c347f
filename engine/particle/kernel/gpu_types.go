package kernel

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUSimParamsSource is the canonical WGSL definition of the SimParams struct.
// Matches GPUSimParams layout exactly (80 bytes).
//
//go:embed assets/sim_params.wgsl
var GPUSimParamsSource string

// GPUSpriteParamsSource is the canonical WGSL definition of the SpriteParams struct.
// Matches GPUSpriteParams layout exactly (64 bytes).
//
//go:embed assets/sprite_params.wgsl
var GPUSpriteParamsSource string

// GPUSimParams is the uniform block read by the field update pass.
// Size: 80 bytes (WGSL uniform aligned).
type GPUSimParams struct {
	Drift         [3]float32 // offset  0: forwardSpeed * speedMultiplier
	CurlScale     float32    // offset 12
	SpawnOrigin   [3]float32 // offset 16: startPos + positionOffset
	NoiseScale    float32    // offset 28
	SpawnExtent   [3]float32 // offset 32: jitter box
	DeltaTime     float32    // offset 44
	EndPos        [3]float32 // offset 48: travel endpoint
	RespawnRadius float32    // offset 60
	GridSize      uint32     // offset 64
	Time          float32    // offset 68: accumulated simulation time
	Respawn       uint32     // offset 72: 1 enables the respawn policy
	_pad          float32    // offset 76
}

// Size returns the size of the GPUSimParams struct in bytes.
func (g *GPUSimParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSimParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUSimParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec3(buf[0:], g.Drift)
	putFloat(buf[12:], g.CurlScale)
	putVec3(buf[16:], g.SpawnOrigin)
	putFloat(buf[28:], g.NoiseScale)
	putVec3(buf[32:], g.SpawnExtent)
	putFloat(buf[44:], g.DeltaTime)
	putVec3(buf[48:], g.EndPos)
	putFloat(buf[60:], g.RespawnRadius)
	binary.LittleEndian.PutUint32(buf[64:], g.GridSize)
	putFloat(buf[68:], g.Time)
	binary.LittleEndian.PutUint32(buf[72:], g.Respawn)
	return buf
}

// GPUSpriteParams is the uniform block read by the sprite render pass.
// Size: 64 bytes (WGSL uniform aligned).
type GPUSpriteParams struct {
	Color          [3]float32 // offset  0: base colour
	ColorVariation float32    // offset 12
	TargetPos      [3]float32 // offset 16: targetPos + positionOffset
	NearRadius     float32    // offset 28
	BaseSize       float32    // offset 32
	MinSize        float32    // offset 36
	MaxSize        float32    // offset 40
	ShrinkSpeed    float32    // offset 44
	GridSize       uint32     // offset 48
	Time           float32    // offset 52
	_pad0          float32    // offset 56
	_pad1          float32    // offset 60
}

// Size returns the size of the GPUSpriteParams struct in bytes.
func (g *GPUSpriteParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSpriteParams struct into a byte buffer suitable for GPU upload.
func (g *GPUSpriteParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec3(buf[0:], g.Color)
	putFloat(buf[12:], g.ColorVariation)
	putVec3(buf[16:], g.TargetPos)
	putFloat(buf[28:], g.NearRadius)
	putFloat(buf[32:], g.BaseSize)
	putFloat(buf[36:], g.MinSize)
	putFloat(buf[40:], g.MaxSize)
	putFloat(buf[44:], g.ShrinkSpeed)
	binary.LittleEndian.PutUint32(buf[48:], g.GridSize)
	putFloat(buf[52:], g.Time)
	return buf
}

func putFloat(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func putVec3(buf []byte, v [3]float32) {
	for i := range 3 {
		putFloat(buf[i*4:], v[i])
	}
}
