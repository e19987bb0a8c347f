package profiler

import (
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/gocarina/gocsv"
)

// FrameStats is one profiler sample, written as one CSV row by WriteCSV.
type FrameStats struct {
	Sample      int     `csv:"sample"`
	Frames      int     `csv:"frames"`
	ElapsedSec  float64 `csv:"elapsed_s"`
	FPS         float64 `csv:"fps"`
	Particles   int     `csv:"particles"`
	HeapMB      float64 `csv:"heap_mb"`
	AllocRateMB float64 `csv:"alloc_rate_mb_s"`
	GCCount     uint32  `csv:"gc_count"`
	LastPauseUs uint64  `csv:"gc_last_pause_us"`
	MaxPauseUs  uint64  `csv:"gc_max_pause_us"`
	SysMB       float64 `csv:"sys_mb"`
}

// Profiler tracks frame rate, particle count and memory statistics for performance monitoring.
// A sample is logged and kept in the history every update interval.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	particles int
	start     time.Time
	clock     func() time.Time
	logger    *slog.Logger
	history   []FrameStats
}

// ProfilerOption is a functional option applied to a Profiler during construction via NewProfiler.
type ProfilerOption func(*Profiler)

// WithUpdateInterval sets how often a sample is taken. Non-positive values keep the 1 second default.
func WithUpdateInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces the wall clock used to time frames.
func WithClock(clock func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the logger samples are written to.
func WithLogger(l *slog.Logger) ProfilerOption {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: time.Second,
		clock:          time.Now,
		logger:         common.Logger(),
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.clock()
	p.start = p.lastTime
	return p
}

// SetParticles records the number of live particles reported with the next sample.
func (p *Profiler) SetParticles(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.particles = n
}

// Tick should be called once per frame to track frame timing.
// Takes a sample when the update interval has elapsed.
// Samples include: FPS, particle count, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if a sample was taken this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.clock()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap, TotalAlloc only grows and tracks churn, Sys is the process footprint.
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	stats := FrameStats{
		Sample:      len(p.history),
		Frames:      p.frameCount,
		ElapsedSec:  currentTime.Sub(p.start).Seconds(),
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Particles:   p.particles,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(allocDelta) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     gcCount,
		LastPauseUs: lastPauseUs,
		MaxPauseUs:  maxPauseUs,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
	}
	p.history = append(p.history, stats)
	p.logger.Info("profiler",
		"fps", stats.FPS,
		"particles", stats.Particles,
		"heap_mb", stats.HeapMB,
		"alloc_rate_mb_s", stats.AllocRateMB,
		"gc", stats.GCCount,
		"gc_last_pause_us", stats.LastPauseUs,
		"gc_max_pause_us", stats.MaxPauseUs,
		"sys_mb", stats.SysMB,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// History returns a copy of every sample taken so far.
func (p *Profiler) History() []FrameStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]FrameStats, len(p.history))
	copy(out, p.history)
	return out
}

// WriteCSV writes the sample history as CSV with a header row.
//
// Parameters:
//   - w: the destination writer
//
// Returns:
//   - error: an error if encoding or writing fails
func (p *Profiler) WriteCSV(w io.Writer) error {
	history := p.History()
	return gocsv.Marshal(&history, w)
}
