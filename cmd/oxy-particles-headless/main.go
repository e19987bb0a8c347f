// Command oxy-particles-headless runs the particle stage on the CPU backend. It writes frames as
// PNG files and frame statistics as CSV, and can preview the frames in the terminal.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/demo"
	"github.com/Carmen-Shannon/oxy-particles/engine"
	"github.com/Carmen-Shannon/oxy-particles/engine/profiler"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/scene"
	"github.com/Carmen-Shannon/oxy-particles/engine/window"
)

type options struct {
	configPath  string
	presetsPath string
	frames      uint64
	dt          float64
	width       int
	height      int
	outDir      string
	every       int
	statsPath   string
	preview     bool
	workers     int
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML stage file decoded over the built-in stage")
	flag.StringVar(&o.presetsPath, "presets", "", "YAML preset file merged over the built-in presets")
	flag.Uint64Var(&o.frames, "frames", 120, "frames to render; 0 runs until quit (preview only)")
	flag.Float64Var(&o.dt, "dt", 1.0/60.0, "simulation step per frame in seconds")
	flag.IntVar(&o.width, "width", 640, "frame width in pixels")
	flag.IntVar(&o.height, "height", 360, "frame height in pixels")
	flag.StringVar(&o.outDir, "out", "", "directory for PNG frames; empty writes none")
	flag.IntVar(&o.every, "every", 10, "write one PNG out of every N frames")
	flag.StringVar(&o.statsPath, "stats", "", "CSV file for frame statistics; empty writes none")
	flag.BoolVar(&o.preview, "preview", false, "show the frames in the terminal")
	flag.IntVar(&o.workers, "workers", 0, "software rasterizer workers; 0 uses GOMAXPROCS")
	verbose := flag.Bool("v", false, "log debug output")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if o.preview {
		// The terminal owns stdout and stderr while previewing.
		logger = common.NopLogger()
	}
	common.SetLogger(logger)

	if err := run(o, logger); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-particles-headless:", err)
		os.Exit(1)
	}
}

func run(o options, logger *slog.Logger) error {
	if o.frames == 0 && !o.preview {
		return fmt.Errorf("-frames 0 requires -preview")
	}
	if err := demo.LoadPresetsFile(o.presetsPath); err != nil {
		return err
	}
	cfg, err := demo.LoadConfigFile(o.configPath)
	if err != nil {
		return err
	}

	var presenters []func(renderer.Frame)
	var capture *demo.Capture
	if o.outDir != "" {
		if capture, err = demo.NewCapture(o.outDir, o.every); err != nil {
			return err
		}
		presenters = append(presenters, capture.Present)
	}

	var surface renderer.Surface = renderer.NewHeadlessSurface(o.width, o.height)
	var term window.Terminal
	if o.preview {
		if term, err = window.NewTerminal(); err != nil {
			return err
		}
		defer term.Close()
		surface = term
		presenters = append(presenters, func(frame renderer.Frame) { term.Present(frame.Image) })
	}

	rendererOptions := []renderer.RendererBuilderOption{
		renderer.WithLogger(logger),
		renderer.WithPresenter(func(frame renderer.Frame) {
			for _, present := range presenters {
				present(frame)
			}
		}),
	}
	if o.workers > 0 {
		rendererOptions = append(rendererOptions, renderer.WithWorkers(o.workers))
	}
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, surface, rendererOptions...)
	if err != nil {
		return err
	}
	defer r.Release()

	width, height := r.Size()
	cam := cfg.Camera.NewCamera(width, height)
	s, err := scene.NewScene("stage", cam, r)
	if err != nil {
		return err
	}
	stage, err := demo.NewStage(s, cfg.Emitters)
	if err != nil {
		return err
	}
	defer stage.Release()

	prof := profiler.NewProfiler(profiler.WithLogger(logger), profiler.WithUpdateInterval(500*time.Millisecond))
	engineOptions := []engine.EngineBuilderOption{
		engine.WithScene(0, s),
		engine.WithProfiler(prof),
		engine.WithProfiling(true),
		engine.WithFixedTimeStep(float32(o.dt)),
		engine.WithMaxFrames(o.frames),
		engine.WithLogger(logger),
	}
	if o.preview {
		engineOptions = append(engineOptions, engine.WithRenderFrameLimit(30))
	}
	eng := engine.NewEngine(engineOptions...)

	controls := demo.NewControls(cam, stage, eng)
	if term != nil {
		term.SetKeyDownCallback(controls.KeyDown)
		term.SetResizeCallback(func(w, h int) {
			if err := r.Resize(w, h); err != nil {
				logger.Warn("resize failed", "err", err)
			}
		})
		go term.ProcessMessages()
	}
	eng.SetRenderCallback(func(float32) {
		if err := controls.Apply(); err != nil {
			logger.Warn("stage change failed", "err", err)
		}
		if term == nil {
			return
		}
		if !term.IsRunning() {
			eng.Quit()
			return
		}
		state := "running"
		if eng.Paused() {
			state = "paused"
		}
		term.SetStatus(fmt.Sprintf("frame %d  %d particles  %s  [space] pause  [r] reseed  [p] focus  [1-4] preset  [q] quit",
			eng.Frames(), stage.ParticleCount(), state))
	})

	logger.Info("rendering", "frames", o.frames, "size", fmt.Sprintf("%dx%d", width, height), "particles", stage.ParticleCount())
	eng.Run()

	if capture != nil {
		if err := capture.Err(); err != nil {
			return err
		}
		logger.Info("frames written", "dir", o.outDir, "count", len(capture.Written()))
	}
	if o.statsPath != "" {
		if err := writeStats(o.statsPath, prof); err != nil {
			return err
		}
		logger.Info("statistics written", "path", o.statsPath, "samples", len(prof.History()))
	}
	return nil
}

func writeStats(path string, prof *profiler.Profiler) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := prof.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
