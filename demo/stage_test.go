package demo

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/engine/particle"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/scene"
)

func newTestScene(t *testing.T) scene.Scene {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.NewHeadlessSurface(48, 32))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	cfg := DefaultConfig()
	s, err := scene.NewScene("stage", cfg.Camera.NewCamera(48, 32), r)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	return s
}

func newTestStage(t *testing.T) (*Stage, scene.Scene) {
	t.Helper()
	s := newTestScene(t)
	st, err := NewStage(s, DefaultConfig().Emitters)
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}
	t.Cleanup(st.Release)
	return st, s
}

func TestNewStage(t *testing.T) {
	st, s := newTestStage(t)

	systems := st.Systems()
	if len(systems) != 3 || len(s.Drawables()) != 3 {
		t.Fatalf("stage has %d systems and %d drawables, want 3", len(systems), len(s.Drawables()))
	}
	for i, want := range []string{"portal", "torch-north", "torch-south"} {
		if systems[i].Label() != want || !systems[i].IsAttached() {
			t.Errorf("system %d = %q attached=%v, want %q", i, systems[i].Label(), systems[i].IsAttached(), want)
		}
	}
	if got := st.ParticleCount(); got != 64+16+16 {
		t.Errorf("ParticleCount = %d, want 96", got)
	}
	if len(s.GlowDrawables()) != 1 {
		t.Errorf("%d glow drawables, want only the portal", len(s.GlowDrawables()))
	}
	if err := s.PrepareCompute(0.016); err != nil {
		t.Fatalf("PrepareCompute: %v", err)
	}
	if err := s.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, ps := range systems {
		if ps.State().Frames != 1 {
			t.Errorf("%s stepped %d times, want 1", ps.Label(), ps.State().Frames)
		}
	}
}

func TestNewStageRollsBack(t *testing.T) {
	s := newTestScene(t)
	emitters := DefaultConfig().Emitters
	broken, err := LoadConfig(strings.NewReader("emitters:\n  - label: ok\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	bad := broken.Emitters[0]
	bad.Preset = "smoke"
	emitters = append(emitters, bad)

	if _, err := NewStage(s, emitters); err == nil {
		t.Fatal("stage with an unknown preset built")
	}
	if n := len(s.Drawables()); n != 0 {
		t.Errorf("%d drawables left after rollback", n)
	}
	if n := len(s.Renderer().Pipelines()); n != 0 {
		t.Errorf("%d pipelines left after rollback", n)
	}
}

func TestStageReseed(t *testing.T) {
	st, s := newTestStage(t)
	for i := 0; i < 3; i++ {
		if err := s.PrepareCompute(0.02); err != nil {
			t.Fatalf("PrepareCompute: %v", err)
		}
	}
	before, err := st.Systems()[0].ReadParticles()
	if err != nil {
		t.Fatalf("ReadParticles: %v", err)
	}

	if err := st.Reseed(); err != nil {
		t.Fatalf("Reseed: %v", err)
	}
	if len(s.Drawables()) != 3 {
		t.Fatalf("%d drawables after reseed, want 3", len(s.Drawables()))
	}
	for _, ps := range st.Systems() {
		if ps.Options().Seed != 2 {
			t.Errorf("%s seed = %d, want 2", ps.Label(), ps.Options().Seed)
		}
		if info := ps.State(); info.Frames != 0 || info.Generations != [2]uint64{1, 1} {
			t.Errorf("%s state = %+v, want a fresh store", ps.Label(), info)
		}
	}
	after, err := st.Systems()[0].ReadParticles()
	if err != nil {
		t.Fatalf("ReadParticles: %v", err)
	}
	same := 0
	for i := range before {
		if before[i] == after[i] {
			same++
		}
	}
	if same == len(before) {
		t.Error("reseeding left the particles unchanged")
	}
}

func TestStageApplyPreset(t *testing.T) {
	st, s := newTestStage(t)
	if got := st.CycleFocus(); got != "torch-north" {
		t.Fatalf("focus = %q, want torch-north", got)
	}
	prev := st.Focused().Options()

	if err := st.ApplyPreset(particle.PresetSpark); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}
	ps := st.Focused()
	o := ps.Options()
	if o.MinSize != 2 || o.MaxSize != 6 || o.BasePointSize != 150 {
		t.Errorf("spark styling not applied: %+v", o)
	}
	if o.StartPos != prev.StartPos || o.EndPos != prev.EndPos || o.StartArea != prev.StartArea {
		t.Errorf("placement changed: %v %v %v", o.StartPos, o.EndPos, o.StartArea)
	}
	if o.Size != particle.DefaultOptions().Size || ps.Drawable().PointCount() != o.Size*o.Size {
		t.Errorf("size %d with %d points", o.Size, ps.Drawable().PointCount())
	}
	if !ps.IsAttached() || !s.Contains(ps.Drawable()) {
		t.Error("system not back on stage")
	}
	if other := st.Systems()[0].Options(); other.BasePointSize != 300 {
		t.Errorf("unfocused system changed: %+v", other)
	}

	if err := st.ApplyPreset("smoke"); err == nil {
		t.Error("unknown preset applied")
	}
	if st.Focused().Options().MinSize != 2 {
		t.Error("failed preset switch changed the options")
	}
}

func TestStageCycleFocusWraps(t *testing.T) {
	st, _ := newTestStage(t)
	var labels []string
	for i := 0; i < 4; i++ {
		labels = append(labels, st.CycleFocus())
	}
	want := []string{"torch-north", "torch-south", "portal", "torch-north"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("focus order = %v, want %v", labels, want)
		}
	}
}

func TestStageRelease(t *testing.T) {
	st, s := newTestStage(t)
	systems := st.Systems()
	st.Release()
	if len(s.Drawables()) != 0 || st.ParticleCount() != 0 || st.Focused() != nil {
		t.Error("stage not empty after Release")
	}
	for _, ps := range systems {
		if ps.IsAttached() {
			t.Errorf("%s still attached", ps.Label())
		}
	}
	if err := st.Reseed(); err != nil {
		t.Errorf("Reseed on an empty stage: %v", err)
	}
}
