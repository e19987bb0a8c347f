package profiler

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
)

func TestTickSamplesEveryInterval(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewProfiler(WithClock(func() time.Time { return now }), WithUpdateInterval(time.Second))
	p.SetParticles(64)

	sampled := 0
	for i := 0; i < 50; i++ {
		now = now.Add(50 * time.Millisecond)
		if p.Tick() {
			sampled++
		}
	}
	if sampled != 2 {
		t.Fatalf("%d samples over 2.5s, want 2", sampled)
	}

	history := p.History()
	if len(history) != 2 {
		t.Fatalf("History has %d entries, want 2", len(history))
	}
	first := history[0]
	if first.Frames != 20 || math.Abs(first.FPS-20) > 1e-9 {
		t.Errorf("first sample: %d frames at %v fps, want 20 at 20", first.Frames, first.FPS)
	}
	if first.Particles != 64 {
		t.Errorf("Particles = %d, want 64", first.Particles)
	}
	if history[1].Sample != 1 || history[1].ElapsedSec != 2 {
		t.Errorf("second sample = %+v", history[1])
	}
}

func TestWriteCSV(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewProfiler(WithClock(func() time.Time { return now }), WithUpdateInterval(time.Second))
	for i := 0; i < 3; i++ {
		now = now.Add(time.Second)
		p.Tick()
	}

	var buf bytes.Buffer
	if err := p.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	header, _, _ := strings.Cut(buf.String(), "\n")
	for _, col := range []string{"sample", "fps", "particles", "heap_mb"} {
		if !strings.Contains(header, col) {
			t.Errorf("header %q lacks %q", header, col)
		}
	}

	var rows []FrameStats
	if err := gocsv.UnmarshalString(buf.String(), &rows); err != nil {
		t.Fatalf("UnmarshalString: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("%d rows, want 3", len(rows))
	}
}
