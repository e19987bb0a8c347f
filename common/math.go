package common

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Clamp limits v to the closed range [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Smoothstep performs Hermite interpolation between 0 and 1 when x is in [edge0, edge1],
// matching the WGSL builtin of the same name.
//
// Parameters:
//   - edge0: lower edge of the transition
//   - edge1: upper edge of the transition
//   - x: value to interpolate
//
// Returns:
//   - float32: 0 below edge0, 1 above edge1, smooth in between
func Smoothstep(edge0, edge1, x float32) float32 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsFiniteVec3 reports whether every component of v is finite.
func IsFiniteVec3(v mgl32.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// ClampLength scales v down so its length does not exceed maxLen. Vectors already within the limit are returned unchanged.
func ClampLength(v mgl32.Vec3, maxLen float32) mgl32.Vec3 {
	l := v.Len()
	if l <= maxLen || l == 0 {
		return v
	}
	return v.Mul(maxLen / l)
}

// ProjectPoint transforms a world-space point into screen space.
// Screen coordinates have their origin in the top-left corner, matching image.RGBA.
//
// Parameters:
//   - viewProj: combined projection * view matrix
//   - p: world-space position
//   - width: viewport width in pixels
//   - height: viewport height in pixels
//
// Returns:
//   - mgl32.Vec2: pixel coordinates of the projected point
//   - float32: normalized device depth in [0, 1]
//   - bool: false when the point lies behind the camera
func ProjectPoint(viewProj mgl32.Mat4, p mgl32.Vec3, width, height int) (mgl32.Vec2, float32, bool) {
	clip := viewProj.Mul4x1(p.Vec4(1))
	if clip[3] <= 1e-6 {
		return mgl32.Vec2{}, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	sx := (ndc[0]*0.5 + 0.5) * float32(width)
	sy := (1 - (ndc[1]*0.5 + 0.5)) * float32(height)
	return mgl32.Vec2{sx, sy}, ndc[2], true
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// BytesToFloat32s copies raw little-endian float data (as read back from the GPU) into a new float32 slice.
// Trailing bytes that do not form a whole float are ignored.
func BytesToFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	if len(out) == 0 {
		return out
	}
	copy(SliceToBytes(out), b[:len(out)*4])
	return out
}
