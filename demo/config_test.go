package demo

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/engine/particle"
	"github.com/go-gl/mathgl/mgl32"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded config invalid: %v", err)
	}
	if len(cfg.Emitters) != 3 {
		t.Fatalf("got %d emitters, want 3", len(cfg.Emitters))
	}

	portal, err := cfg.Emitters[0].ParticleOptions()
	if err != nil {
		t.Fatalf("portal: %v", err)
	}
	if portal.Size != 8 || portal.Color != (particle.Color{0.77, 0.2, 1.0}) || !portal.Glow {
		t.Errorf("portal options = %+v", portal)
	}
	if !portal.Respawn || portal.CurlScale != particle.DefaultOptions().CurlScale {
		t.Error("portal did not start from the default options")
	}

	torch, err := cfg.Emitters[1].ParticleOptions()
	if err != nil {
		t.Fatalf("torch: %v", err)
	}
	if torch.Size != 4 || torch.CurlScale != particle.DefaultOptions().CurlScale || torch.Glow {
		t.Errorf("torch did not decode over the defaults: %+v", torch)
	}
	if torch.ForwardSpeed != (mgl32.Vec3{0, 1, 0}) || torch.EndPos != (mgl32.Vec3{-5, 20, 6.5}) {
		t.Errorf("torch placement = %v -> %v", torch.ForwardSpeed, torch.EndPos)
	}
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("window:\n  title: stage\ncamera:\n  radius: 12\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Window.Title != "stage" || cfg.Window.Width != 1280 {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Camera.Radius != 12 || cfg.Camera.Fov == 0 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if len(cfg.Emitters) != 3 {
		t.Errorf("emitters replaced without being listed")
	}
}

func TestLoadConfigReplacesEmitters(t *testing.T) {
	doc := `
emitters:
  - label: sparks
    preset: spark
    options:
      color: "#ff8000"
      seed: 9
`
	cfg, err := LoadConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Emitters) != 1 || cfg.Emitters[0].Label != "sparks" {
		t.Fatalf("emitters = %+v", cfg.Emitters)
	}
	o, err := cfg.Emitters[0].ParticleOptions()
	if err != nil {
		t.Fatalf("ParticleOptions: %v", err)
	}
	if o.MinSize != 2 || o.MaxSize != 6 || o.Seed != 9 {
		t.Errorf("spark options not applied: %+v", o)
	}
	if o.Color.Hex() != "#ff8000" {
		t.Errorf("color = %s, want #ff8000", o.Color.Hex())
	}
}

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := LoadConfigFile("")
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if len(cfg.Emitters) != 3 {
		t.Errorf("got %d emitters, want the 3 defaults", len(cfg.Emitters))
	}
	if _, err := LoadConfigFile("does-not-exist.yaml"); err == nil {
		t.Error("missing file accepted")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed", "emitters: [", "decode config"},
		{"no emitters", "emitters: []", "no emitters"},
		{"duplicate labels", "emitters:\n  - label: a\n  - label: a\n", "duplicate emitter label"},
		{"missing label", "emitters:\n  - preset: fire\n", "has no label"},
		{"unknown preset", "emitters:\n  - label: a\n    preset: smoke\n", "preset"},
		{"invalid option", "emitters:\n  - label: a\n    options:\n      size: 0\n", "size"},
		{"short vector", "emitters:\n  - label: a\n    options:\n      start_pos: [1, 2]\n", "emitter \"a\""},
		{"window size", "window:\n  width: 0\n", "window size"},
		{"camera radius", "camera:\n  radius: -1\n", "camera radius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
