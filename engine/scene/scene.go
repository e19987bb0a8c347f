package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
)

// ErrNotInScene is returned when an operation names a drawable the scene does not hold.
var ErrNotInScene = errors.New("scene: drawable not in scene")

// Drawable is an opaque renderable the scene draws once per frame.
type Drawable interface {
	// Label returns a debug label for the drawable.
	Label() string

	// PointCount returns the number of sprites the drawable emits per frame.
	PointCount() int

	// Draw encodes the drawable's draw calls in the renderer's current frame.
	//
	// Parameters:
	//   - r: the renderer with an open frame
	//
	// Returns:
	//   - error: an error if a draw call fails
	Draw(r renderer.Renderer) error
}

// Simulator is advanced once per frame during the compute phase, before any drawable is drawn.
type Simulator interface {
	// Step advances the simulator by dt seconds.
	Step(dt float32) error
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool
	logger *slog.Logger

	cam camera.Camera
	r   renderer.Renderer

	drawables  []Drawable
	glow       map[Drawable]bool
	simulators []Simulator
}

// Scene is the drawable registry of one view. It holds the camera and renderer and orders a
// frame into a compute phase (every simulator steps) followed by a render phase (every
// drawable draws in insertion order).
type Scene interface {
	// Name returns the name of the scene.
	Name() string

	// Active returns whether the scene is active for rendering.
	Active() bool

	// SetActive sets whether the scene is active for rendering.
	SetActive(active bool)

	// Camera returns the camera of the scene.
	Camera() camera.Camera

	// Renderer returns the renderer of the scene.
	Renderer() renderer.Renderer

	// Add appends a drawable to the draw list.
	//
	// Parameters:
	//   - d: the drawable to add
	//
	// Returns:
	//   - error: an error if d is nil or already in the scene
	Add(d Drawable) error

	// Remove removes a drawable and its glow mark. Returns false if d was not in the scene.
	Remove(d Drawable) bool

	// Contains reports whether d is in the scene.
	Contains(d Drawable) bool

	// Drawables returns a copy of the draw list in draw order.
	Drawables() []Drawable

	// SetGlow marks a drawable as eligible (or not) for the glow compositor.
	//
	// Parameters:
	//   - d: a drawable already in the scene
	//   - glow: the new glow eligibility
	//
	// Returns:
	//   - error: ErrNotInScene if d was never added
	SetGlow(d Drawable, glow bool) error

	// IsGlow reports whether a drawable is glow-eligible.
	IsGlow(d Drawable) bool

	// GlowDrawables returns the glow-eligible drawables in draw order.
	GlowDrawables() []Drawable

	// AddSimulator registers a simulator for the compute phase. Adding twice is a no-op.
	AddSimulator(sim Simulator)

	// RemoveSimulator unregisters a simulator. Returns false if it was not registered.
	RemoveSimulator(sim Simulator) bool

	// PrepareCompute runs the compute phase: all simulators are stepped in registration order
	// inside one compute frame, so their grid passes are submitted together before the frame.
	//
	// Parameters:
	//   - dt: the frame delta in seconds
	//
	// Returns:
	//   - error: the joined errors of every failing simulator
	PrepareCompute(dt float32) error

	// DrawCalls draws every drawable in insertion order into the renderer's open frame.
	DrawCalls() error

	// Render runs one render phase: begins a frame from the camera, draws, ends and presents it.
	Render() error
}

var _ Scene = &scene{}

// NewScene creates a Scene viewing through cam and drawing with r.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach
//   - r: the renderer to attach
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
//   - error: an error if cam or r is nil
func NewScene(name string, cam camera.Camera, r renderer.Renderer, options ...SceneBuilderOption) (Scene, error) {
	if cam == nil {
		return nil, errors.New("scene: NewScene requires a non-nil Camera")
	}
	if r == nil {
		return nil, errors.New("scene: NewScene requires a non-nil Renderer")
	}

	s := &scene{
		mu:     &sync.RWMutex{},
		name:   name,
		active: true,
		logger: common.Logger(),
		cam:    cam,
		r:      r,
		glow:   make(map[Drawable]bool),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Renderer() renderer.Renderer {
	return s.r
}

func (s *scene) Add(d Drawable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(d)
}

// add appends a drawable. Caller must hold the write lock.
func (s *scene) add(d Drawable) error {
	if d == nil {
		return errors.New("scene: nil drawable")
	}
	if slices.Contains(s.drawables, d) {
		return fmt.Errorf("scene: drawable %s already added", d.Label())
	}
	s.drawables = append(s.drawables, d)
	s.logger.Debug("drawable added", "scene", s.name, "drawable", d.Label(), "points", d.PointCount())
	return nil
}

func (s *scene) Remove(d Drawable) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.drawables, d)
	if i < 0 {
		return false
	}
	s.drawables = slices.Delete(s.drawables, i, i+1)
	delete(s.glow, d)
	s.logger.Debug("drawable removed", "scene", s.name, "drawable", d.Label())
	return true
}

func (s *scene) Contains(d Drawable) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.drawables, d)
}

func (s *scene) Drawables() []Drawable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.drawables)
}

func (s *scene) SetGlow(d Drawable, glow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.drawables, d) {
		return ErrNotInScene
	}
	if glow {
		s.glow[d] = true
	} else {
		delete(s.glow, d)
	}
	return nil
}

func (s *scene) IsGlow(d Drawable) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.glow[d]
}

func (s *scene) GlowDrawables() []Drawable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Drawable, 0, len(s.glow))
	for _, d := range s.drawables {
		if s.glow[d] {
			out = append(out, d)
		}
	}
	return out
}

func (s *scene) AddSimulator(sim Simulator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sim == nil || slices.Contains(s.simulators, sim) {
		return
	}
	s.simulators = append(s.simulators, sim)
}

func (s *scene) RemoveSimulator(sim Simulator) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.simulators, sim)
	if i < 0 {
		return false
	}
	s.simulators = slices.Delete(s.simulators, i, i+1)
	return true
}

func (s *scene) PrepareCompute(dt float32) error {
	s.mu.RLock()
	sims := slices.Clone(s.simulators)
	s.mu.RUnlock()
	if len(sims) == 0 {
		return nil
	}

	if err := s.r.BeginComputeFrame(); err != nil {
		return err
	}
	var errs []error
	for _, sim := range sims {
		if err := sim.Step(dt); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.r.EndComputeFrame(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *scene) DrawCalls() error {
	s.mu.RLock()
	drawables := slices.Clone(s.drawables)
	s.mu.RUnlock()

	var errs []error
	for _, d := range drawables {
		if err := d.Draw(s.r); err != nil {
			errs = append(errs, fmt.Errorf("draw %s: %w", d.Label(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *scene) Render() error {
	width, height := s.r.Size()
	if err := s.r.BeginFrame(s.cam.ViewState(width, height)); err != nil {
		return err
	}
	drawErr := s.DrawCalls()
	if err := s.r.EndFrame(); err != nil {
		return errors.Join(drawErr, err)
	}
	s.r.Present()
	return drawErr
}
