package pipeline

import (
	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a grid pass: a compute shader advancing every cell of a grid.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a sprite pass: vertex and fragment shaders drawing one sprite per cell.
	PipelineTypeRender
)

// GridKernel is the CPU form of a compute shader. It returns the texel written to the target
// grid at the given cell index, reading only the source grid.
//
// Parameters:
//   - u: the uniform block of the pass
//   - src: the source grid, row-major, common.TexelChannels floats per cell
//   - size: the side length of the grid
//   - index: the cell index (i + j*size)
//
// Returns:
//   - mgl32.Vec4: the texel for the target grid
type GridKernel func(u common.Uniform, src []float32, size, index int) mgl32.Vec4

// SpriteKernel is the CPU form of a sprite vertex shader. It turns the texel of one cell into
// a screen-space sprite, or reports false when the particle is not visible.
type SpriteKernel func(u common.Uniform, texel mgl32.Vec4, coord mgl32.Vec2, view common.ViewState) (common.Sprite, bool)

// pipeline is the implementation of the Pipeline interface.
// It holds the shaders and CPU kernels of a pass together with the GPU objects created for it.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	vertexShader, fragmentShader, computeShader shader.Shader

	// gridKernel and spriteKernel are run by the software backend in place of the shaders.
	gridKernel   GridKernel
	spriteKernel SpriteKernel

	renderPipeline   *wgpu.RenderPipeline
	computePipeline  *wgpu.ComputePipeline
	bindGroupLayouts []*wgpu.BindGroupLayout

	// The following properties only apply to render pipelines.

	depthTestEnabled  bool
	depthWriteEnabled bool
	blendEnabled      bool
	cullMode          wgpu.CullMode
	topology          wgpu.PrimitiveTopology
	frontFace         wgpu.FrontFace
	writeMask         wgpu.ColorWriteMask
	blendState        *wgpu.BlendState
	vertexStepMode    wgpu.VertexStepMode
}

// Pipeline describes one GPU pass. A compute pipeline advances a grid, a render pipeline draws
// sprites from a grid. Each carries both its WGSL shaders (for the WebGPU backend) and the
// equivalent CPU kernel (for the software backend).
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// GridKernel returns the CPU kernel of a compute pipeline, or nil.
	GridKernel() GridKernel

	// SpriteKernel returns the CPU kernel of a render pipeline, or nil.
	SpriteKernel() SpriteKernel

	// Pipeline returns the underlying pipeline object, either *wgpu.RenderPipeline or *wgpu.ComputePipeline
	// Note: The caller is responsible for type asserting the returned value as either pipeline type.
	//
	// Returns:
	//   - any: the underlying pipeline object.
	Pipeline() any

	// BindGroupLayout returns the GPU bind group layout created for a group index, or nil.
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state for this pipeline, used only when blending is enabled
	BlendState() *wgpu.BlendState

	// VertexStepMode returns the step mode applied to the vertex buffer layouts of the vertex shader.
	// Sprite pipelines step per instance so that one coordinate feeds all six quad vertices.
	VertexStepMode() wgpu.VertexStepMode

	// SetRenderPipeline sets the render pipeline and the bind group layouts it was created with.
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	//   - layouts: the bind group layouts indexed by group
	SetRenderPipeline(p *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout)

	// SetComputePipeline sets the compute pipeline and the bind group layouts it was created with.
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline to set
	//   - layouts: the bind group layouts indexed by group
	SetComputePipeline(p *wgpu.ComputePipeline, layouts []*wgpu.BindGroupLayout)

	// Release releases the GPU objects held by the pipeline. The pipeline can be registered again afterwards.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface. A PipelineType must be specified and provided upon creation.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		vertexStepMode:    wgpu.VertexStepModeVertex,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) GridKernel() GridKernel {
	return p.gridKernel
}

func (p *pipeline) SpriteKernel() SpriteKernel {
	return p.spriteKernel
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) VertexStepMode() wgpu.VertexStepMode {
	return p.vertexStepMode
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline, layouts []*wgpu.BindGroupLayout) {
	p.renderPipeline = rp
	p.bindGroupLayouts = layouts
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline, layouts []*wgpu.BindGroupLayout) {
	p.computePipeline = cp
	p.bindGroupLayouts = layouts
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	for _, l := range p.bindGroupLayouts {
		if l != nil {
			l.Release()
		}
	}
	p.bindGroupLayouts = nil
}
