package engine

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/profiler"
	"github.com/Carmen-Shannon/oxy-particles/engine/scene"
	"github.com/Carmen-Shannon/oxy-particles/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	mu *sync.RWMutex

	tickRateChannel chan time.Duration // dynamic tick rate updates

	running atomic.Bool
	paused  atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window window.Window
	logger *slog.Logger

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenes map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	fixedTimeStep    float32       // 0 = wall clock
	maxFrames        uint64        // 0 = until quit
	frames           atomic.Uint64
}

// Engine is the main entry point for the engine.
// It orchestrates the tick loop, the render loop and the window. Every render frame runs the
// compute phase of all active scenes (particle simulation) before any of them draws.
type Engine interface {
	// Window returns the window the engine presents to, or nil when running headless.
	Window() window.Window

	// Profiler returns the frame profiler.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance sampling.
	EnableProfiler()

	// DisableProfiler disables performance sampling.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for application logic.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	SetRenderFrameLimit(fps float64)

	// SetPaused pauses or resumes the compute phase. Paused scenes keep rendering their last state.
	SetPaused(paused bool)

	// Paused reports whether the compute phase is paused.
	Paused() bool

	// AddScene registers a scene at the given z-index key.
	// Scenes are drawn in ascending key order during the render loop.
	//
	// Parameters:
	//   - key: the z-index determining draw order (lower draws first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key, or nil.
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	Scenes() map[int]scene.Scene

	// Frame runs one frame synchronously: the compute phase of every active scene, then one
	// render pass in which every active scene sharing the first scene's renderer draws.
	// Scenes with a renderer of their own render separately afterwards.
	//
	// Parameters:
	//   - dt: the frame delta in seconds
	//
	// Returns:
	//   - error: the joined errors of every failing phase
	Frame(dt float32) error

	// Frames returns the number of frames rendered by Run.
	Frames() uint64

	// Run starts the engine. With a window it blocks until the window closes; headless it
	// renders on the calling goroutine until Quit is called or the frame limit is reached.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:              &sync.RWMutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		logger:          common.Logger(),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}
	return e
}

// resize propagates a framebuffer size change to every scene's renderer and camera.
func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	for _, s := range e.Scenes() {
		if r := s.Renderer(); r != nil {
			if err := r.Resize(width, height); err != nil {
				e.logger.Warn("renderer resize failed", "scene", s.Name(), "err", err)
			}
		}
		if c := s.Camera(); c != nil {
			c.SetAspect(float32(width) / float32(height))
		}
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() {
	e.running.Store(true)
	defer e.running.Store(false)

	if e.window == nil {
		e.wg.Add(1)
		go e.handleEngine()
		e.renderLoop()
		e.signalQuit()
		e.wg.Wait()
		return
	}

	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if cb := e.tickCallbackFn(); cb != nil {
				cb(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// handleRender runs the render loop in its own goroutine while the window owns the main thread.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()
	e.renderLoop()
}

// renderLoop renders frames until quit or the frame limit.
func (e *engine) renderLoop() {
	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		frameStart := time.Now()
		dt := e.fixedTimeStep
		if dt <= 0 {
			dt = float32(frameStart.Sub(lastRender).Seconds())
		}
		lastRender = frameStart

		if err := e.Frame(dt); err != nil {
			e.logger.Warn("frame failed", "frame", e.frames.Load(), "err", err)
		}
		if cb := e.renderCallbackFn(); cb != nil {
			cb(dt)
		}
		if e.profilingEnabled.Load() {
			e.profiler.SetParticles(e.particleCount())
			e.profiler.Tick()
		}

		if n := e.frames.Add(1); e.maxFrames > 0 && n >= e.maxFrames {
			e.signalQuit()
			return
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// activeScenes returns the active scenes in ascending z-index order.
func (e *engine) activeScenes() []scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var active []scene.Scene
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	return active
}

func (e *engine) Frame(dt float32) error {
	active := e.activeScenes()
	if len(active) == 0 {
		return nil
	}

	var errs []error
	// Phase 1: compute. Every simulator steps before anything samples its grids.
	if !e.paused.Load() {
		for _, s := range active {
			if err := s.PrepareCompute(dt); err != nil {
				errs = append(errs, err)
			}
		}
	}

	// Phase 2: render. Scenes sharing the first renderer are composited into one pass.
	first := active[0]
	r := first.Renderer()
	var separate []scene.Scene
	if err := r.BeginFrame(first.Camera().ViewState(r.Size())); err != nil {
		errs = append(errs, err)
	} else {
		for _, s := range active {
			if s.Renderer() != r {
				separate = append(separate, s)
				continue
			}
			if err := s.DrawCalls(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.EndFrame(); err != nil {
			errs = append(errs, err)
		} else {
			r.Present()
		}
	}
	for _, s := range separate {
		if err := s.Render(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// particleCount sums the points of every drawable in the active scenes.
func (e *engine) particleCount() int {
	n := 0
	for _, s := range e.activeScenes() {
		for _, d := range s.Drawables() {
			n += d.PointCount()
		}
	}
	return n
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) tickCallbackFn() func(float32) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCallback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderCallback = callback
}

func (e *engine) renderCallbackFn() func(float32) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.renderCallback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) SetPaused(paused bool) {
	e.paused.Store(paused)
}

func (e *engine) Paused() bool {
	return e.paused.Load()
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
