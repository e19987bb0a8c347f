package renderer

import (
	"image/color"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPipeline pre-registers a single Pipeline during construction.
//
// Parameters:
//   - p: the Pipeline to register
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipeline option to a renderer
func WithPipeline(p pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		r.pipelineCache[p.PipelineKey()] = p
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the WebGPU render pass.
// When not specified, the default is MSAA4x. The software backend ignores it.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff or MSAA4x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.msaa = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithWorkers sets the number of workers the software backend splits grid passes across.
// Zero or less uses runtime.NumCPU().
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.workers = n
	}
}

// WithMaxGridSize caps the grid side length below the backend's own limit.
// Zero or less keeps the backend limit.
func WithMaxGridSize(size int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxGridSize = size
	}
}

// WithClearColor sets the colour the frame target is cleared to at BeginFrame.
func WithClearColor(c color.RGBA) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithPresenter sets the callback the software backend hands every presented frame to.
//
// Parameters:
//   - presenter: called from Present with the last completed frame; the frame is only valid during the call
//
// Returns:
//   - RendererBuilderOption: a function that sets the presenter
func WithPresenter(presenter func(Frame)) RendererBuilderOption {
	return func(r *renderer) {
		r.presenter = presenter
	}
}

// WithShaderValidation compiles every shader of a pipeline to SPIR-V at registration and
// rejects pipelines whose programs do not compile. Useful with the software backend, which
// otherwise never looks at the WGSL.
func WithShaderValidation(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validateShaders = enabled
	}
}

// WithLogger sets the logger used for renderer diagnostics. Nil keeps the package logger.
func WithLogger(l *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if l != nil {
			r.logger = l
		}
	}
}
