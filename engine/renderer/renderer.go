package renderer

import (
	"fmt"
	"image/color"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend
	surface     Surface
	logger      *slog.Logger

	width, height int
	inFrame       bool
	released      bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	msaa                 MSAASampleCount
	workers              int
	maxGridSize          int
	clearColor           color.RGBA
	presenter            func(Frame)
	validateShaders      bool
}

// Renderer is the graphics context shared by every particle system of an application.
//
// It owns grid targets (square RGBA32F textures), a cache of compute and render pipelines, and
// the frame structure: an optional compute frame batching grid passes, followed by a render
// frame drawing sprite batches. All work is submitted in call order on one queue, so a grid
// pass dispatched before BeginFrame is visible to every sprite batch of that frame.
type Renderer interface {
	// BackendType returns the backend the renderer was created with.
	BackendType() RendererBackendType

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines creates the backend objects for one or more pipelines, then caches them
	// by PipelineKey. Pipelines whose keys are already registered are skipped. Registration stops
	// at the first failure; pipelines registered before it stay registered.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if a shader fails validation or pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ReleasePipeline releases the backend objects of a pipeline and removes it from the cache.
	// Unknown keys are ignored.
	ReleasePipeline(key string)

	// MaxGridSize returns the largest grid side length the backend can allocate.
	MaxGridSize() int

	// CreateGridTarget allocates a zeroed size×size RGBA32F grid.
	//
	// Parameters:
	//   - label: a debug label for the grid
	//   - size: the side length of the grid
	//
	// Returns:
	//   - GridTarget: the allocated grid
	//   - error: ErrInvalidGridSize, ErrGridTooLarge, or a backend allocation error
	CreateGridTarget(label string, size int) (GridTarget, error)

	// WriteGridTarget uploads staging data into a grid. The staging size must match the grid.
	WriteGridTarget(target GridTarget, data common.GridStagingData) error

	// ReadGridTarget copies a grid back to the CPU. Pending work on the queue is completed first.
	//
	// Parameters:
	//   - target: the grid to read
	//
	// Returns:
	//   - common.GridStagingData: the grid contents, row-major
	//   - error: an error if the readback fails
	ReadGridTarget(target GridTarget) (common.GridStagingData, error)

	// ReleaseGridTarget frees a grid. Releasing twice is a no-op.
	ReleaseGridTarget(target GridTarget)

	// BeginComputeFrame starts batching grid passes into one submission.
	// Must be paired with EndComputeFrame.
	BeginComputeFrame() error

	// DispatchGrid runs a compute pipeline over the pass target. Outside a compute frame the
	// pass is submitted immediately.
	//
	// Parameters:
	//   - key: the compute pipeline key
	//   - pass: the uniforms and the source/target grids of the pass
	//
	// Returns:
	//   - error: ErrUnknownPipeline, ErrGridAliasing, or a backend error
	DispatchGrid(key string, pass GridPass) error

	// EndComputeFrame submits the grid passes batched since BeginComputeFrame.
	EndComputeFrame() error

	// BeginFrame acquires the frame target and begins the render pass.
	// Must be paired with EndFrame after all DrawSprites invocations within a single frame.
	//
	// Parameters:
	//   - view: the camera state of the frame
	//
	// Returns:
	//   - error: an error if the frame target could not be acquired
	BeginFrame(view common.ViewState) error

	// DrawSprites encodes one instanced sprite draw in the current render pass.
	//
	// Parameters:
	//   - key: the render pipeline key
	//   - batch: the uniforms, source grid and instance coordinates of the draw
	//
	// Returns:
	//   - error: ErrNoFrame, ErrUnknownPipeline, or a backend error
	DrawSprites(key string, batch SpriteBatch) error

	// EndFrame ends the current render pass and submits it.
	// Does not present the surface, call Present() after EndFrame to display the frame.
	EndFrame() error

	// Present displays the last submitted frame.
	Present()

	// Resize reconfigures the frame target for a new surface size.
	Resize(width, height int) error

	// Size returns the current frame target size.
	Size() (int, int)

	// Release frees every pipeline and the backend. Later calls return ErrReleased.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for the given backend and surface.
//
// Parameters:
//   - backendType: the backend to create
//   - surface: the presentation target; headless surfaces are only supported by the software backend
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the created renderer
//   - error: an error if the backend could not be created
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	if surface == nil {
		return nil, fmt.Errorf("renderer: nil surface")
	}
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		surface:       surface,
		logger:        common.Logger(),
		msaa:          MSAA4x,
		clearColor:    color.RGBA{R: 10, G: 10, B: 16, A: 255},
	}
	for _, option := range options {
		option(r)
	}

	var err error
	switch backendType {
	case BackendTypeWGPU:
		r.backend, err = newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, r.msaa, r.clearColor, r.maxGridSize)
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.workers, r.maxGridSize, r.clearColor, r.presenter)
	default:
		err = fmt.Errorf("renderer: unknown backend type %d", backendType)
	}
	if err != nil {
		return nil, err
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.width, r.height = surface.Width(), surface.Height()
	if err := r.backend.ConfigureSurface(r.width, r.height); err != nil {
		r.backend.Release()
		return nil, err
	}

	pending := r.pipelineCache
	r.pipelineCache = make(map[string]pipeline.Pipeline, len(pending))
	for _, p := range pending {
		if err := r.RegisterPipelines(p); err != nil {
			r.Release()
			return nil, err
		}
	}

	r.logger.Debug("renderer created", "backend", backendType, "width", r.width, "height", r.height, "max_grid", r.backend.MaxGridSize())
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}

	for _, p := range pipelines {
		if _, exists := r.pipelineCache[p.PipelineKey()]; exists {
			continue
		}

		if r.validateShaders {
			for _, t := range []shader.ShaderType{shader.ShaderTypeCompute, shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
				s := p.Shader(t)
				if s == nil {
					continue
				}
				if _, err := shader.Compile(s); err != nil {
					return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
				}
			}
		}

		var err error
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			err = r.backend.RegisterComputePipeline(p)
		case pipeline.PipelineTypeRender:
			err = r.backend.RegisterRenderPipeline(p)
		default:
			err = fmt.Errorf("unknown pipeline type %d", p.Type())
		}
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
		}

		r.pipelineCache[p.PipelineKey()] = p
		r.logger.Debug("pipeline registered", "key", p.PipelineKey(), "backend", r.backendType)
	}
	return nil
}

func (r *renderer) ReleasePipeline(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelineCache[key]
	if !ok {
		return
	}
	delete(r.pipelineCache, key)
	if !r.released {
		r.backend.ReleasePipeline(p)
	}
}

func (r *renderer) MaxGridSize() int {
	return r.backend.MaxGridSize()
}

func (r *renderer) CreateGridTarget(label string, size int) (GridTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	if size <= 0 {
		return nil, fmt.Errorf("grid %s: %w", label, ErrInvalidGridSize)
	}
	if size > r.backend.MaxGridSize() {
		return nil, fmt.Errorf("grid %s: %d > %d: %w", label, size, r.backend.MaxGridSize(), ErrGridTooLarge)
	}
	return r.backend.CreateGridTarget(label, size)
}

func (r *renderer) WriteGridTarget(target GridTarget, data common.GridStagingData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if data.Size != target.Size() || len(data.Texels) != data.Cells()*common.TexelChannels {
		return fmt.Errorf("grid %s: staging data for size %d does not fit grid size %d", target.Label(), data.Size, target.Size())
	}
	return r.backend.WriteGridTarget(target, data)
}

func (r *renderer) ReadGridTarget(target GridTarget) (common.GridStagingData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return common.GridStagingData{}, ErrReleased
	}
	return r.backend.ReadGridTarget(target)
}

func (r *renderer) ReleaseGridTarget(target GridTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released || target == nil {
		return
	}
	r.backend.ReleaseGridTarget(target)
}

func (r *renderer) BeginComputeFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	return r.backend.BeginComputeFrame()
}

func (r *renderer) DispatchGrid(key string, pass GridPass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	p, ok := r.pipelineCache[key]
	if !ok || p.Type() != pipeline.PipelineTypeCompute {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, key)
	}
	if pass.Source == nil || pass.Target == nil {
		return fmt.Errorf("pipeline %s: grid pass needs a source and a target", key)
	}
	if pass.Source == pass.Target {
		return ErrGridAliasing
	}
	if pass.Source.Size() != pass.Target.Size() {
		return fmt.Errorf("pipeline %s: source size %d != target size %d", key, pass.Source.Size(), pass.Target.Size())
	}
	return r.backend.DispatchGrid(p, pass)
}

func (r *renderer) EndComputeFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	return r.backend.EndComputeFrame()
}

func (r *renderer) BeginFrame(view common.ViewState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if r.inFrame {
		return fmt.Errorf("renderer: previous frame not ended")
	}
	if view.Width == 0 || view.Height == 0 {
		view.Width, view.Height = r.width, r.height
	}
	if err := r.backend.BeginFrame(view); err != nil {
		return err
	}
	r.inFrame = true
	return nil
}

func (r *renderer) DrawSprites(key string, batch SpriteBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if !r.inFrame {
		return ErrNoFrame
	}
	p, ok := r.pipelineCache[key]
	if !ok || p.Type() != pipeline.PipelineTypeRender {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, key)
	}
	if batch.Source == nil {
		return fmt.Errorf("pipeline %s: sprite batch needs a source grid", key)
	}
	if batch.Count <= 0 {
		return nil
	}
	if len(batch.Coords) < batch.Count*2 {
		return fmt.Errorf("pipeline %s: %d coords for %d sprites", key, len(batch.Coords)/2, batch.Count)
	}
	return r.backend.DrawSprites(p, batch)
}

func (r *renderer) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if !r.inFrame {
		return ErrNoFrame
	}
	r.inFrame = false
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.backend.Present()
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	r.width, r.height = width, height
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	for key, p := range r.pipelineCache {
		r.backend.ReleasePipeline(p)
		delete(r.pipelineCache, key)
	}
	r.backend.Release()
	r.released = true
	r.logger.Debug("renderer released", "backend", r.backendType)
}
