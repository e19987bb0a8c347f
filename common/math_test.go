package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSmoothstep(t *testing.T) {
	tests := []struct {
		x, want float32
	}{
		{-1, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{2, 1},
	}
	for _, tt := range tests {
		if got := Smoothstep(0, 1, tt.x); got != tt.want {
			t.Errorf("Smoothstep(0, 1, %v) = %v, want %v", tt.x, got, tt.want)
		}
	}
	if got := Smoothstep(1, 1, 0.5); got != 0 {
		t.Errorf("degenerate edges below: got %v, want 0", got)
	}
}

func TestClampLength(t *testing.T) {
	v := ClampLength(mgl32.Vec3{3, 4, 0}, 1)
	if math.Abs(float64(v.Len()-1)) > 1e-5 {
		t.Fatalf("length = %v, want 1", v.Len())
	}
	short := mgl32.Vec3{0.1, 0, 0}
	if got := ClampLength(short, 1); got != short {
		t.Fatalf("short vector changed: %v", got)
	}
	if got := ClampLength(mgl32.Vec3{}, 1); got != (mgl32.Vec3{}) {
		t.Fatalf("zero vector changed: %v", got)
	}
}

func TestIsFiniteVec3(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	if !IsFiniteVec3(mgl32.Vec3{1, 2, 3}) {
		t.Error("finite vector reported as non-finite")
	}
	if IsFiniteVec3(mgl32.Vec3{1, nan, 3}) {
		t.Error("NaN vector reported as finite")
	}
	if IsFiniteVec3(mgl32.Vec3{inf, 0, 0}) {
		t.Error("Inf vector reported as finite")
	}
}

func TestProjectPoint(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	vp := proj.Mul4(view)

	screen, _, ok := ProjectPoint(vp, mgl32.Vec3{}, 200, 100)
	if !ok {
		t.Fatal("origin should be in front of the camera")
	}
	if math.Abs(float64(screen[0]-100)) > 1e-3 || math.Abs(float64(screen[1]-50)) > 1e-3 {
		t.Fatalf("origin projected to %v, want (100, 50)", screen)
	}

	if _, _, ok := ProjectPoint(vp, mgl32.Vec3{0, 0, 20}, 200, 100); ok {
		t.Fatal("point behind the camera should not project")
	}

	above, _, _ := ProjectPoint(vp, mgl32.Vec3{0, 1, 0}, 200, 100)
	if above[1] >= screen[1] {
		t.Fatalf("point above origin should have a smaller y: %v vs %v", above, screen)
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustum(proj.Mul4(view))

	if !f.ContainsPoint(mgl32.Vec3{}) {
		t.Error("origin should be inside the frustum")
	}
	if f.ContainsPoint(mgl32.Vec3{0, 0, 20}) {
		t.Error("point behind the camera should be outside")
	}
	if f.ContainsPoint(mgl32.Vec3{500, 0, 0}) {
		t.Error("far off-axis point should be outside")
	}
	if !f.ContainsSphere(mgl32.Vec3{0, 0, 10.05}, 1) {
		t.Error("sphere overlapping the near plane should be kept")
	}
}

func TestBytesToFloat32s(t *testing.T) {
	in := []float32{1, -2.5, 3.25}
	out := BytesToFloat32s(append(SliceToBytes(in), 0xff))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}
