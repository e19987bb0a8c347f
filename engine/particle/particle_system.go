package particle

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/particle/kernel"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-particles/engine/scene"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNotAttached is returned by reads that need the grids while the system has no renderer.
var ErrNotAttached = errors.New("particle: system is not attached to a renderer")

// seedStream is the PCG stream selector of the initial scatter.
const seedStream uint64 = 0x9e3779b97f4a7c15

var systemIDs atomic.Uint64

type particleSystem struct {
	mu *sync.Mutex

	id     uint64
	label  string
	logger *slog.Logger

	cfg     config
	derived DerivedConfig

	fieldKey  string
	spriteKey string

	r        renderer.Renderer
	store    *stateStore
	coords   []float32
	scene    scene.Scene
	drawable *drawable
	sim      *frameSimulator
	points   atomic.Int64

	time     float32
	lastTick time.Time
}

// ParticleSystem is one GPU particle effect: two particle grids advanced by the curl-noise field
// pass and one drawable rendering the current grid as point sprites. Systems are independent;
// any number of them can share a renderer and a scene.
type ParticleSystem interface {
	// Label returns the debug label of the system.
	Label() string

	// Attach allocates both grids on r, seeds them, registers the two pipelines and runs one
	// warm pass per grid with a zero time step. On failure everything created is released and
	// the system stays detached. Attaching to the renderer already in use is a no-op.
	//
	// Parameters:
	//   - r: the renderer that owns the grids from now on
	//
	// Returns:
	//   - error: a *ResourceError wrapping the renderer failure
	Attach(r renderer.Renderer) error

	// AttachDrawable adds the drawable to s, marks it glow-eligible when configured and registers
	// the system as a simulator so the scene's compute phase steps it. Frame deltas from the
	// compute phase are clamped to the maximum step. Before Attach it does nothing.
	//
	// Parameters:
	//   - s: a scene drawing with the renderer passed to Attach
	//
	// Returns:
	//   - error: an error if s is nil, uses a different renderer or rejects the drawable
	AttachDrawable(s scene.Scene) error

	// Update advances the simulation by the wall-clock time since the previous Update (or Attach),
	// capped at the maximum step. Before Attach it does nothing.
	Update() error

	// Step advances the simulation by exactly dt seconds: one field pass from the current grid
	// into the other, then the swap. Before Attach it does nothing.
	//
	// Parameters:
	//   - dt: the time step in seconds, finite and not negative
	//
	// Returns:
	//   - error: a *ConfigurationError for a bad dt or a *ResourceError if the pass fails
	Step(dt float32) error

	// Reconfigure merges options over the current configuration and recomputes the derived
	// values. Particle state is never re-seeded. Changing the grid size is rejected while
	// attached; a new seed takes effect at the next Attach.
	//
	// Parameters:
	//   - options: the options to apply, in order
	//
	// Returns:
	//   - error: a *ConfigurationError if the merged configuration is invalid
	Reconfigure(options ...ParticleSystemBuilderOption) error

	// Detach removes the drawable and simulator from s (or from the scene it was added to when
	// s is nil) and releases the grids and pipelines. Calling it again is a no-op.
	Detach(s scene.Scene) error

	// Options returns a copy of the current configuration.
	Options() Options

	// Derived returns the derived configuration consumed by the two passes.
	Derived() DerivedConfig

	// IsAttached reports whether the system currently owns renderer resources.
	IsAttached() bool

	// Drawable returns the drawable rendering this system. It is the same value for the whole
	// lifetime of the system.
	Drawable() scene.Drawable

	// ReadParticles reads back the current grid as one (x, y, z, age) vector per particle,
	// in row-major cell order.
	ReadParticles() ([]mgl32.Vec4, error)

	// State returns the double buffer bookkeeping. The zero value is returned while detached.
	State() StateInfo
}

var _ ParticleSystem = &particleSystem{}
var _ scene.Simulator = &frameSimulator{}

// NewParticleSystem creates a detached particle system from the default options with the given
// options applied in order.
//
// Parameters:
//   - options: functional options to configure the system
//
// Returns:
//   - ParticleSystem: the new system
//   - error: a *ConfigurationError if the resulting options are invalid
func NewParticleSystem(options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	id := systemIDs.Add(1)
	cfg := config{
		options: DefaultOptions(),
		logger:  common.Logger(),
		clock:   time.Now,
		maxStep: defaultMaxStep,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.options.Validate(); err != nil {
		return nil, err
	}
	if cfg.label == "" {
		cfg.label = fmt.Sprintf("particles-%d", id)
	}

	p := &particleSystem{
		mu:        &sync.Mutex{},
		id:        id,
		label:     cfg.label,
		logger:    cfg.logger,
		cfg:       cfg,
		derived:   cfg.options.Derive(),
		fieldKey:  fmt.Sprintf("particles/%d/field", id),
		spriteKey: fmt.Sprintf("particles/%d/sprite", id),
	}
	p.drawable = &drawable{ps: p}
	p.sim = &frameSimulator{ps: p}
	return p, nil
}

func (p *particleSystem) Label() string {
	return p.label
}

func (p *particleSystem) Attach(r renderer.Renderer) error {
	if r == nil {
		return errors.New("particle: Attach requires a non-nil Renderer")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.r != nil {
		if p.r == r {
			p.logger.Warn("particle system already attached", "system", p.label)
			return nil
		}
		return fmt.Errorf("particle: %s is attached to another renderer", p.label)
	}

	opts := p.cfg.options
	store, err := allocateStateStore(r, p.label, opts.Size)
	if err != nil {
		return err
	}
	rollback := func() {
		r.ReleasePipeline(p.fieldKey)
		r.ReleasePipeline(p.spriteKey)
		store.release(r)
	}

	seeded := kernel.SeedGrid(rand.NewPCG(opts.Seed, opts.Seed^seedStream), opts.Size, p.derived.EffectiveSpawnOrigin, p.derived.SpawnExtent)
	if err := store.seed(r, seeded); err != nil {
		rollback()
		return err
	}

	pipelines, err := p.buildPipelines()
	if err != nil {
		rollback()
		return err
	}
	if err := r.RegisterPipelines(pipelines...); err != nil {
		rollback()
		return &ResourceError{Op: "register pipelines", Err: err}
	}

	p.time = 0
	for range store.grids {
		if err := store.advance(r, p.fieldKey, p.simParams(0)); err != nil {
			rollback()
			return &ResourceError{Op: "warm pass", Err: err}
		}
	}

	p.r = r
	p.store = store
	p.coords = kernel.CoordTable(opts.Size)
	p.points.Store(int64(opts.Size * opts.Size))
	p.lastTick = p.cfg.clock()
	p.logger.Debug("particle system attached", "system", p.label, "size", opts.Size, "backend", r.BackendType())
	return nil
}

// buildPipelines parses the three programs and pairs them with their software kernels.
func (p *particleSystem) buildPipelines() ([]pipeline.Pipeline, error) {
	compute, err := shader.NewShader(p.fieldKey, shader.ShaderTypeCompute, kernel.FieldUpdateSource)
	if err != nil {
		return nil, &ResourceError{Op: "parse field shader", Err: err}
	}
	vertex, err := shader.NewShader(p.spriteKey+"/vs", shader.ShaderTypeVertex, kernel.SpriteVertexSource)
	if err != nil {
		return nil, &ResourceError{Op: "parse sprite vertex shader", Err: err}
	}
	fragment, err := shader.NewShader(p.spriteKey+"/fs", shader.ShaderTypeFragment, kernel.SpriteFragmentSource)
	if err != nil {
		return nil, &ResourceError{Op: "parse sprite fragment shader", Err: err}
	}

	field := pipeline.NewPipeline(p.fieldKey, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(compute),
		pipeline.WithGridKernel(kernel.NewFieldKernel(int64(p.cfg.options.Seed))),
	)
	sprite := pipeline.NewPipeline(p.spriteKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vertex),
		pipeline.WithFragmentShader(fragment),
		pipeline.WithSpriteKernel(kernel.SpriteTexel),
		pipeline.WithVertexStepMode(wgpu.VertexStepModeInstance),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithCullMode(wgpu.CullModeNone),
		pipeline.WithBlendEnabled(true),
		pipeline.WithDepthWriteEnabled(false),
	)
	return []pipeline.Pipeline{field, sprite}, nil
}

func (p *particleSystem) simParams(dt float32) *kernel.GPUSimParams {
	o := p.cfg.options
	var respawn uint32
	if o.Respawn {
		respawn = 1
	}
	return &kernel.GPUSimParams{
		Drift:         p.derived.EffectiveDrift,
		CurlScale:     o.CurlScale,
		SpawnOrigin:   p.derived.EffectiveSpawnOrigin,
		NoiseScale:    o.NoiseScale,
		SpawnExtent:   p.derived.SpawnExtent,
		DeltaTime:     dt,
		EndPos:        p.derived.EndPos,
		RespawnRadius: o.RespawnRadius,
		GridSize:      uint32(o.Size),
		Time:          p.time,
		Respawn:       respawn,
	}
}

func (p *particleSystem) spriteParams() *kernel.GPUSpriteParams {
	o := p.cfg.options
	return &kernel.GPUSpriteParams{
		Color:          o.Color,
		ColorVariation: o.ColorVariation,
		TargetPos:      p.derived.EffectiveTarget,
		NearRadius:     o.NearRadius,
		BaseSize:       o.BasePointSize,
		MinSize:        o.MinSize,
		MaxSize:        o.MaxSize,
		ShrinkSpeed:    o.ShrinkSpeed,
		GridSize:       uint32(o.Size),
		Time:           p.time,
	}
}

func (p *particleSystem) AttachDrawable(s scene.Scene) error {
	if s == nil {
		return errors.New("particle: AttachDrawable requires a non-nil Scene")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.r == nil {
		p.logger.Warn("AttachDrawable before Attach ignored", "system", p.label)
		return nil
	}
	if p.scene == s {
		return nil
	}
	if p.scene != nil {
		return fmt.Errorf("particle: %s is already drawn by scene %s", p.label, p.scene.Name())
	}
	if s.Renderer() != p.r {
		return fmt.Errorf("particle: scene %s draws with a different renderer than %s", s.Name(), p.label)
	}

	if err := s.Add(p.drawable); err != nil {
		return &ResourceError{Op: "add drawable", Err: err}
	}
	if p.cfg.options.Glow {
		if err := s.SetGlow(p.drawable, true); err != nil {
			s.Remove(p.drawable)
			return &ResourceError{Op: "mark glow", Err: err}
		}
	}
	s.AddSimulator(p.sim)
	p.scene = s
	p.logger.Debug("particle drawable added", "system", p.label, "scene", s.Name(), "glow", p.cfg.options.Glow)
	return nil
}

func (p *particleSystem) Update() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.r == nil {
		p.logger.Warn("Update before Attach ignored", "system", p.label)
		return nil
	}
	now := p.cfg.clock()
	dt := float32(now.Sub(p.lastTick).Seconds())
	p.lastTick = now
	if dt < 0 {
		dt = 0
	}
	return p.step(p.clampStep(dt))
}

// clampStep limits a frame delta to the configured maximum step. NaN passes through so step
// can reject it.
func (p *particleSystem) clampStep(dt float32) float32 {
	if dt > p.cfg.maxStep {
		return p.cfg.maxStep
	}
	return dt
}

func (p *particleSystem) Step(dt float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.r == nil {
		p.logger.Warn("Step before Attach ignored", "system", p.label)
		return nil
	}
	return p.step(dt)
}

// frameSimulator steps a system from the scene compute phase. Frame deltas come from the wall
// clock, so they are clamped to the maximum step like Update.
type frameSimulator struct {
	ps *particleSystem
}

func (f *frameSimulator) Step(dt float32) error {
	p := f.ps
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.r == nil {
		return nil
	}
	return p.step(p.clampStep(dt))
}

// step runs one field pass. Caller must hold the lock and be attached.
func (p *particleSystem) step(dt float32) error {
	if dt < 0 || !common.IsFinite(dt) {
		return configErr("dt", "must be finite and not negative, got %v", dt)
	}
	p.time += dt
	if err := p.store.advance(p.r, p.fieldKey, p.simParams(dt)); err != nil {
		p.time -= dt
		return &ResourceError{Op: "field pass", Err: err}
	}
	p.store.frames++
	return nil
}

func (p *particleSystem) Reconfigure(options ...ParticleSystemBuilderOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.cfg
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(&next); err != nil {
			return err
		}
	}
	if err := next.options.Validate(); err != nil {
		return err
	}
	if p.r != nil && next.options.Size != p.cfg.options.Size {
		return configErr("size", "cannot change from %d to %d while attached", p.cfg.options.Size, next.options.Size)
	}
	if p.scene != nil && next.options.Glow != p.cfg.options.Glow {
		if err := p.scene.SetGlow(p.drawable, next.options.Glow); err != nil {
			return &ResourceError{Op: "mark glow", Err: err}
		}
	}

	next.label = p.label
	p.cfg = next
	p.logger = next.logger
	p.derived = next.options.Derive()
	p.logger.Debug("particle system reconfigured", "system", p.label, "drift", p.derived.EffectiveDrift)
	return nil
}

func (p *particleSystem) Detach(s scene.Scene) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.scene
	if target == nil {
		target = s
	} else if s != nil && s != target {
		p.logger.Warn("Detach called with a scene that does not draw the system", "system", p.label, "scene", s.Name())
	}
	if target != nil {
		target.Remove(p.drawable)
		target.RemoveSimulator(p.sim)
	}
	p.scene = nil

	if p.r == nil {
		return nil
	}
	p.r.ReleasePipeline(p.fieldKey)
	p.r.ReleasePipeline(p.spriteKey)
	p.store.release(p.r)
	p.r = nil
	p.store = nil
	p.coords = nil
	p.points.Store(0)
	p.logger.Debug("particle system detached", "system", p.label)
	return nil
}

func (p *particleSystem) Options() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.options
}

func (p *particleSystem) Derived() DerivedConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.derived
}

func (p *particleSystem) IsAttached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r != nil
}

func (p *particleSystem) Drawable() scene.Drawable {
	return p.drawable
}

func (p *particleSystem) ReadParticles() ([]mgl32.Vec4, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.r == nil {
		return nil, ErrNotAttached
	}
	data, err := p.r.ReadGridTarget(p.store.currentGrid())
	if err != nil {
		return nil, &ResourceError{Op: "read grid", Err: err}
	}
	out := make([]mgl32.Vec4, data.Cells())
	for i := range out {
		out[i] = data.Texel(i)
	}
	return out, nil
}

func (p *particleSystem) State() StateInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store == nil {
		return StateInfo{}
	}
	return p.store.info()
}

// drawable draws the current grid of its system. The scene may call Label and PointCount while
// the system holds its own lock, so neither of them locks.
type drawable struct {
	ps *particleSystem
}

var _ scene.Drawable = &drawable{}

func (d *drawable) Label() string {
	return d.ps.label
}

func (d *drawable) PointCount() int {
	return int(d.ps.points.Load())
}

func (d *drawable) Draw(r renderer.Renderer) error {
	ps := d.ps
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.r == nil {
		return nil
	}
	if r != ps.r {
		return fmt.Errorf("particle: %s drawn with a renderer it is not attached to", ps.label)
	}
	size := ps.cfg.options.Size
	err := r.DrawSprites(ps.spriteKey, renderer.SpriteBatch{
		Uniforms: ps.spriteParams(),
		Source:   ps.store.currentGrid(),
		Coords:   ps.coords,
		Count:    size * size,
	})
	if err != nil {
		return &ResourceError{Op: "draw sprites", Err: err}
	}
	return nil
}
