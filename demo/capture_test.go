package demo

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/engine"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/scene"
)

func TestCaptureWritesEveryNthFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	capture, err := NewCapture(dir, 3)
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.NewHeadlessSurface(40, 30),
		renderer.WithPresenter(capture.Present),
	)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	cfg := DefaultConfig()
	s, err := scene.NewScene("capture", cfg.Camera.NewCamera(40, 30), r)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	stage, err := NewStage(s, cfg.Emitters)
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}
	t.Cleanup(stage.Release)

	eng := engine.NewEngine(engine.WithScene(0, s))
	for i := 0; i < 7; i++ {
		if err := eng.Frame(1.0 / 30.0); err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
	}
	if err := capture.Err(); err != nil {
		t.Fatalf("capture: %v", err)
	}

	written := capture.Written()
	want := []string{"frame_00000.png", "frame_00003.png", "frame_00006.png"}
	if len(written) != len(want) {
		t.Fatalf("wrote %v, want %v", written, want)
	}
	for i, path := range written {
		if filepath.Base(path) != want[i] {
			t.Errorf("file %d = %s, want %s", i, filepath.Base(path), want[i])
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
			t.Errorf("%s is %dx%d, want 40x30", path, b.Dx(), b.Dy())
		}
	}
}

func TestCaptureKeepsFirstError(t *testing.T) {
	dir := t.TempDir()
	capture, err := NewCapture(dir, 0)
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	capture.Present(renderer.Frame{})
	if capture.Err() != nil || len(capture.Written()) != 0 {
		t.Fatal("empty frame was written")
	}
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.NewHeadlessSurface(4, 4),
		renderer.WithPresenter(capture.Present),
	)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Release()
	s, err := scene.NewScene("missing-dir", DefaultConfig().Camera.NewCamera(4, 4), r)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	if err := s.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if capture.Err() == nil {
		t.Error("write into a removed directory succeeded")
	}
}
