// Command oxy-particles opens a window and runs the particle stage described by a YAML file.
//
// Controls: left drag orbits, right or middle drag pans, scroll zooms. Space pauses the
// simulation, R reseeds every emitter, P cycles the focused emitter and 1-4 switch it to the
// fire, water, magic and spark presets. Escape quits.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/demo"
	"github.com/Carmen-Shannon/oxy-particles/engine"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/scene"
	"github.com/Carmen-Shannon/oxy-particles/engine/window/glfwwindow"
)

func main() {
	configPath := flag.String("config", "", "YAML stage file decoded over the built-in stage")
	presetsPath := flag.String("presets", "", "YAML preset file merged over the built-in presets")
	verbose := flag.Bool("v", false, "log debug output")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	common.SetLogger(logger)

	if err := run(*configPath, *presetsPath, logger); err != nil {
		logger.Error("oxy-particles failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath, presetsPath string, logger *slog.Logger) error {
	if err := demo.LoadPresetsFile(presetsPath); err != nil {
		return err
	}
	cfg, err := demo.LoadConfigFile(configPath)
	if err != nil {
		return err
	}

	title := common.Coalesce(cfg.Window.Title, "oxy-particles")
	win, err := glfwwindow.NewWindow(
		glfwwindow.WithTitle(title),
		glfwwindow.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	presentMode := renderer.PresentModeUncapped
	if cfg.Window.VSync {
		presentMode = renderer.PresentModeVSync
	}
	msaa := renderer.MSAAOff
	if cfg.Window.MSAA {
		msaa = renderer.MSAA4x
	}
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win,
		renderer.WithPresentMode(presentMode),
		renderer.WithMSAA(msaa),
		renderer.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer r.Release()

	cam := cfg.Camera.NewCamera(win.Width(), win.Height())
	s, err := scene.NewScene("stage", cam, r)
	if err != nil {
		return err
	}
	stage, err := demo.NewStage(s, cfg.Emitters)
	if err != nil {
		return err
	}
	defer stage.Release()

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithScene(0, s),
		engine.WithProfiling(true),
		engine.WithLogger(logger),
	)

	controls := demo.NewControls(cam, stage, eng)
	controls.Bind(win)
	eng.SetRenderCallback(func(float32) {
		if err := controls.Apply(); err != nil {
			logger.Warn("stage change failed", "err", err)
		}
	})

	samples := 0
	win.SetUpdateCallback(func() {
		history := eng.Profiler().History()
		if len(history) == samples {
			return
		}
		samples = len(history)
		last := history[samples-1]
		state := ""
		if eng.Paused() {
			state = " [paused]"
		}
		win.SetTitle(fmt.Sprintf("%s - %.0f fps - %d particles%s", title, last.FPS, last.Particles, state))
	})

	logger.Info("stage ready", "emitters", len(cfg.Emitters), "particles", stage.ParticleCount())
	eng.Run()
	return nil
}
