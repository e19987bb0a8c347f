package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
)

func TestOrbitControllerPosition(t *testing.T) {
	cc := NewOrbitController(
		WithTarget(mgl32.Vec3{0, 0, 0}),
		WithRadius(10),
		WithElevation(0),
		WithAzimuth(0),
	)
	if got := cc.Position(); !got.ApproxEqual(mgl32.Vec3{0, 0, 10}) {
		t.Fatalf("Position = %v, want (0, 0, 10)", got)
	}

	cc.Zoom(100)
	if got := cc.Radius(); got != 2 {
		t.Fatalf("Radius after large zoom = %v, want clamp to 2", got)
	}

	cc.Orbit(0, 1e6)
	if got := cc.Elevation(); got > float32(math.Pi/2) {
		t.Fatalf("Elevation = %v, should be clamped below pi/2", got)
	}
}

func TestOrbitControllerPanKeepsOffset(t *testing.T) {
	cc := NewOrbitController(WithTarget(mgl32.Vec3{}), WithRadius(10), WithElevation(0.3))
	before := cc.Position().Sub(cc.Target())
	cc.Pan(20, -5)
	after := cc.Position().Sub(cc.Target())
	if !before.ApproxEqualThreshold(after, 1e-4) {
		t.Fatalf("pan changed the camera offset: %v -> %v", before, after)
	}
	if cc.Target() == (mgl32.Vec3{}) {
		t.Fatal("pan did not move the target")
	}
}

func TestCameraViewStateProjectsTarget(t *testing.T) {
	cc := NewOrbitController(WithTarget(mgl32.Vec3{1, 2, 3}), WithRadius(15))
	cam := NewCamera(WithController(cc))
	view := cam.ViewState(320, 240)

	if view.Width != 320 || view.Height != 240 {
		t.Fatalf("viewport = %dx%d", view.Width, view.Height)
	}
	if math.Abs(float64(cam.Aspect()-320.0/240.0)) > 1e-6 {
		t.Fatalf("aspect = %v", cam.Aspect())
	}
	screen, depth, ok := common.ProjectPoint(view.ViewProj, mgl32.Vec3{1, 2, 3}, 320, 240)
	if !ok {
		t.Fatal("target not in front of camera")
	}
	if math.Abs(float64(screen[0]-160)) > 1e-2 || math.Abs(float64(screen[1]-120)) > 1e-2 {
		t.Fatalf("target projected to %v, want the viewport centre", screen)
	}
	if depth < 0 || depth > 1 {
		t.Fatalf("depth %v outside the WebGPU [0, 1] range", depth)
	}
	if view.Eye != cc.Position() {
		t.Fatalf("eye = %v, want %v", view.Eye, cc.Position())
	}
}

func TestGPUCameraUniformLayout(t *testing.T) {
	u := NewGPUCameraUniform(common.ViewState{
		ViewProj: mgl32.Ident4(),
		Eye:      mgl32.Vec3{1, 2, 3},
		Width:    640,
		Height:   480,
	})
	buf := u.Marshal()
	if len(buf) != 96 {
		t.Fatalf("uniform = %d bytes, want 96", len(buf))
	}
	floats := common.BytesToFloat32s(buf)
	if floats[0] != 1 || floats[16] != 1 || floats[18] != 3 || floats[20] != 640 || floats[21] != 480 {
		t.Fatalf("unexpected layout: %v", floats)
	}
}
