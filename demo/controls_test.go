package demo

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/window"
)

type fakePauser struct{ paused bool }

func (f *fakePauser) SetPaused(paused bool) { f.paused = paused }
func (f *fakePauser) Paused() bool          { return f.paused }

func TestControlsPause(t *testing.T) {
	p := &fakePauser{}
	c := NewControls(nil, nil, p)
	c.KeyDown(common.KeySpace)
	if !p.paused {
		t.Fatal("space did not pause")
	}
	c.KeyDown(common.KeySpace)
	if p.paused {
		t.Error("space did not resume")
	}
}

func TestControlsQueueStageChanges(t *testing.T) {
	st, s := newTestStage(t)
	c := NewControls(s.Camera(), st, nil)

	c.KeyDown(common.KeyR)
	c.KeyDown(common.KeyP)
	c.KeyDown(common.Key2)
	if st.Systems()[0].Options().Seed != 1 {
		t.Fatal("stage changed before Apply")
	}

	if err := c.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	systems := st.Systems()
	if systems[0].Options().Seed != 2 {
		t.Errorf("reseed not applied")
	}
	if got := st.Focused().Label(); got != "torch-north" {
		t.Errorf("focus = %q, want torch-north", got)
	}
	if got := systems[1].Options().CurlScale; got != 1.8 {
		t.Errorf("torch curl scale = %v, want the water preset's 1.8", got)
	}
	if err := c.Apply(); err != nil {
		t.Errorf("second Apply: %v", err)
	}
}

func TestControlsCamera(t *testing.T) {
	s := newTestScene(t)
	ctrl := s.Camera().Controller()
	c := NewControls(s.Camera(), nil, nil)

	radius := ctrl.Radius()
	c.Scroll(1)
	if ctrl.Radius() >= radius {
		t.Errorf("scroll up did not zoom in: %v -> %v", radius, ctrl.Radius())
	}

	azimuth := ctrl.Azimuth()
	c.MouseMove(10, 10)
	if ctrl.Azimuth() != azimuth {
		t.Fatal("camera moved without a drag")
	}
	c.MouseButton(window.MouseButtonLeft, true, 100, 100)
	c.MouseMove(140, 100)
	if ctrl.Azimuth() == azimuth {
		t.Error("left drag did not orbit")
	}
	c.MouseButton(window.MouseButtonLeft, false, 140, 100)

	target := ctrl.Target()
	c.MouseButton(window.MouseButtonRight, true, 0, 0)
	c.MouseMove(20, 0)
	if ctrl.Target() == target {
		t.Error("right drag did not pan")
	}
	c.MouseButton(window.MouseButtonRight, false, 20, 0)
	target = ctrl.Target()
	c.MouseMove(60, 60)
	if ctrl.Target() != target {
		t.Error("camera panned after the drag ended")
	}
}
