package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU backend. Grid passes run the pipelines' CPU kernels
	// across a worker pool and sprites are rasterized into an in-memory image.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	}
	return "unknown"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)

var (
	// ErrGridTooLarge is returned when a grid target exceeds the backend's texture limits.
	ErrGridTooLarge = errors.New("renderer: grid size exceeds backend limits")

	// ErrInvalidGridSize is returned for grid targets with a non-positive side length.
	ErrInvalidGridSize = errors.New("renderer: grid size must be positive")

	// ErrUnknownPipeline is returned when a pass names a pipeline that is not registered.
	ErrUnknownPipeline = errors.New("renderer: unknown pipeline")

	// ErrNoFrame is returned when sprites are drawn outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("renderer: no frame in progress")

	// ErrReleased is returned by every operation on a released renderer or grid target.
	ErrReleased = errors.New("renderer: released")

	// ErrGridAliasing is returned when a grid pass reads and writes the same grid target.
	ErrGridAliasing = errors.New("renderer: grid pass source and target are the same grid")
)

// Surface is the presentation target of a renderer. window.Window satisfies it; headless
// renderers use NewHeadlessSurface.
type Surface interface {
	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// SurfaceDescriptor returns the platform surface descriptor, or nil for headless surfaces.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

type headlessSurface struct {
	width, height int
}

// NewHeadlessSurface returns a Surface of the given size without a platform window.
func NewHeadlessSurface(width, height int) Surface {
	return &headlessSurface{width: width, height: height}
}

func (s *headlessSurface) Width() int                                 { return s.width }
func (s *headlessSurface) Height() int                                { return s.height }
func (s *headlessSurface) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }

// GridTarget is a square RGBA32F grid allocated by a backend. Each backend only accepts its own targets.
type GridTarget interface {
	// Label returns the debug label the grid was created with.
	Label() string

	// Size returns the side length of the grid.
	Size() int
}

// GridPass describes one dispatch of a compute pipeline over a grid.
type GridPass struct {
	// Uniforms is uploaded to the pipeline's uniform binding before the dispatch.
	Uniforms common.Uniform
	// Source is the grid bound to the grid_source role.
	Source GridTarget
	// Target is the grid bound to the grid_target role. It must differ from Source.
	Target GridTarget
}

// SpriteBatch describes one instanced sprite draw reading particle state from a grid.
type SpriteBatch struct {
	// Uniforms is uploaded to the pipeline's uniform binding before the draw.
	Uniforms common.Uniform
	// Source is the grid bound to the grid_source role.
	Source GridTarget
	// Coords holds one (u, v) pair per particle, used as the per-instance vertex attribute.
	Coords []float32
	// Count is the number of sprites to draw.
	Count int
}

// RendererBackend is the interface implemented by every backend of the Renderer.
// The Renderer validates arguments and resolves pipeline keys before calling into it.
type RendererBackend interface {
	ConfigureSurface(width, height int) error
	SetPresentMode(mode PresentMode)
	MaxGridSize() int

	CreateGridTarget(label string, size int) (GridTarget, error)
	WriteGridTarget(target GridTarget, data common.GridStagingData) error
	ReadGridTarget(target GridTarget) (common.GridStagingData, error)
	ReleaseGridTarget(target GridTarget)

	RegisterComputePipeline(p pipeline.Pipeline) error
	RegisterRenderPipeline(p pipeline.Pipeline) error
	ReleasePipeline(p pipeline.Pipeline)

	BeginComputeFrame() error
	DispatchGrid(p pipeline.Pipeline, pass GridPass) error
	EndComputeFrame() error

	BeginFrame(view common.ViewState) error
	DrawSprites(p pipeline.Pipeline, batch SpriteBatch) error
	EndFrame() error
	Present()

	Release()
}
