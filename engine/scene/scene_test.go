package scene

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
)

type recorder struct {
	events *[]string
}

type fakeDrawable struct {
	recorder
	label string
	err   error
}

func (d *fakeDrawable) Label() string   { return d.label }
func (d *fakeDrawable) PointCount() int { return 1 }
func (d *fakeDrawable) Draw(renderer.Renderer) error {
	*d.events = append(*d.events, "draw:"+d.label)
	return d.err
}

type fakeSimulator struct {
	recorder
	label string
}

func (s *fakeSimulator) Step(float32) error {
	*s.events = append(*s.events, "step:"+s.label)
	return nil
}

func newTestScene(t *testing.T, options ...SceneBuilderOption) Scene {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.NewHeadlessSurface(32, 32))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Release)
	s, err := NewScene("test", camera.NewCamera(camera.WithController(camera.NewOrbitController())), r, options...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewSceneRequiresCollaborators(t *testing.T) {
	if _, err := NewScene("x", nil, nil); err == nil {
		t.Fatal("NewScene accepted a nil camera")
	}
}

func TestAddRemoveAndGlow(t *testing.T) {
	var events []string
	a := &fakeDrawable{recorder: recorder{&events}, label: "a"}
	b := &fakeDrawable{recorder: recorder{&events}, label: "b"}
	s := newTestScene(t, WithDrawables(a))

	if err := s.Add(a); err == nil {
		t.Error("duplicate Add accepted")
	}
	if err := s.SetGlow(b, true); !errors.Is(err, ErrNotInScene) {
		t.Errorf("SetGlow on foreign drawable: err = %v", err)
	}
	if err := s.Add(b); err != nil {
		t.Fatal(err)
	}
	if err := s.SetGlow(b, true); err != nil {
		t.Fatal(err)
	}
	if got := s.GlowDrawables(); len(got) != 1 || got[0] != b {
		t.Errorf("GlowDrawables = %v", got)
	}

	if !s.Remove(b) || s.Remove(b) {
		t.Error("Remove should succeed exactly once")
	}
	if s.IsGlow(b) {
		t.Error("glow mark survived removal")
	}
	if got := s.Drawables(); len(got) != 1 || got[0] != a {
		t.Errorf("Drawables = %v", got)
	}
}

func TestComputeRunsBeforeDraw(t *testing.T) {
	var events []string
	d1 := &fakeDrawable{recorder: recorder{&events}, label: "d1"}
	d2 := &fakeDrawable{recorder: recorder{&events}, label: "d2"}
	sim := &fakeSimulator{recorder: recorder{&events}, label: "sim"}
	s := newTestScene(t, WithDrawables(d1, d2), WithSimulators(sim))
	s.AddSimulator(sim)

	if err := s.PrepareCompute(1.0 / 60); err != nil {
		t.Fatal(err)
	}
	if err := s.Render(); err != nil {
		t.Fatal(err)
	}

	want := []string{"step:sim", "draw:d1", "draw:d2"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}

	if !s.RemoveSimulator(sim) {
		t.Fatal("RemoveSimulator failed")
	}
	events = events[:0]
	if err := s.PrepareCompute(1.0 / 60); err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("removed simulator still stepped: %v", events)
	}
}

func TestRenderReportsDrawErrors(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	s := newTestScene(t, WithDrawables(&fakeDrawable{recorder: recorder{&events}, label: "bad", err: boom}))
	if err := s.Render(); !errors.Is(err, boom) {
		t.Fatalf("Render err = %v, want boom", err)
	}
}
