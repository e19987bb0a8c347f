package renderer

import (
	"errors"
	"fmt"
	"image/color"
	"runtime"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// gridTexelBytes is the size of one RGBA32F texel.
const gridTexelBytes = common.TexelChannels * 4

// copyRowAlignment is the required bytesPerRow alignment of texture to buffer copies.
const copyRowAlignment = 256

// wgpuGrid is the GridTarget of the WebGPU backend: a storage-capable RGBA32F texture.
type wgpuGrid struct {
	label    string
	size     int
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	released bool
}

func (g *wgpuGrid) Label() string { return g.label }
func (g *wgpuGrid) Size() int     { return g.size }

// bindGroupKey identifies a bind group of a pass. Groups without grid bindings use nil grids.
type bindGroupKey struct {
	group          int
	source, target GridTarget
}

// wgpuPass holds the GPU resources created for one registered pipeline.
type wgpuPass struct {
	layouts map[int]wgpu.BindGroupLayoutDescriptor
	roles   map[int]map[int]shader.AnnotationArg

	// uniforms owns one uniform buffer per pass-specific uniform binding, keyed by slotKey.
	uniforms   bind_group_provider.BindGroupProvider
	instances  bind_group_provider.BindGroupProvider
	bindGroups map[bindGroupKey]bind_group_provider.BindGroupProvider
}

func slotKey(group, binding int) int {
	return group<<8 | binding
}

type wgpuRendererBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the main render pass
	clearColor  wgpu.Color
	maxGridSize int

	// camera holds the per-frame camera uniform shared by every render pipeline.
	camera bind_group_provider.BindGroupProvider

	passes map[pipeline.Pipeline]*wgpuPass

	// Frame state for batched rendering across multiple draw calls
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// Compute frame state for batching all grid passes into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder
}

var _ RendererBackend = &wgpuRendererBackend{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount, clearColor color.RGBA, maxGridSize int) (RendererBackend, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("wgpu backend: a window surface is required")
	}
	runtime.LockOSThread()
	w := &wgpuRendererBackend{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: sampleCount,
		clearColor: wgpu.Color{
			R: float64(clearColor.R) / 255,
			G: float64(clearColor.G) / 255,
			B: float64(clearColor.B) / 255,
			A: float64(clearColor.A) / 255,
		},
		passes: make(map[pipeline.Pipeline]*wgpuPass),
		camera: bind_group_provider.NewBindGroupProvider("Camera"),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.adapter = a

	limits := wgpu.DefaultLimits()
	w.maxGridSize = int(limits.MaxTextureDimension2D)
	if maxGridSize > 0 && maxGridSize < w.maxGridSize {
		w.maxGridSize = maxGridSize
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Particle Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	cameraUniform := camera.NewGPUCameraUniform(common.ViewState{})
	buf, err := d.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Camera Uniform Buffer",
		Size:  uint64(cameraUniform.Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("camera buffer: %w", err)
	}
	w.camera.SetBuffer(0, buf)

	return w, nil
}

func (b *wgpuRendererBackend) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("surface reports no formats")
	}
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if msaaEnabled {
		// The render pass draws into the MSAA texture; the swapchain view is the ResolveTarget.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return err
		}
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			return err
		}
	}

	// Depth texture sample count must match the color attachment.
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		return err
	}

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard // Don't store MSAA data, just resolve
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          b.msaaTextureView, // nil when MSAA is off; set in BeginFrame
				ResolveTarget: nil,               // set per-frame when MSAA is on
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       storeOp,
				ClearValue:    b.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

func (b *wgpuRendererBackend) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackend) MaxGridSize() int {
	return b.maxGridSize
}

func (b *wgpuRendererBackend) CreateGridTarget(label string, size int) (GridTarget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Usage: wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding |
			wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(size),
			Height:             uint32(size),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA32Float,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("grid %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("grid %s: %w", label, err)
	}
	return &wgpuGrid{label: label, size: size, texture: tex, view: view}, nil
}

func (b *wgpuRendererBackend) grid(target GridTarget) (*wgpuGrid, error) {
	g, ok := target.(*wgpuGrid)
	if !ok {
		return nil, fmt.Errorf("grid %s was not created by the wgpu backend", target.Label())
	}
	if g.released {
		return nil, fmt.Errorf("grid %s: %w", g.label, ErrReleased)
	}
	return g, nil
}

func (b *wgpuRendererBackend) WriteGridTarget(target GridTarget, data common.GridStagingData) error {
	g, err := b.grid(target)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	size := uint32(g.size)
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  g.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		common.SliceToBytes(data.Texels),
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  size * gridTexelBytes,
			RowsPerImage: size,
		},
		&wgpu.Extent3D{
			Width:              size,
			Height:             size,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackend) ReadGridTarget(target GridTarget) (common.GridStagingData, error) {
	g, err := b.grid(target)
	if err != nil {
		return common.GridStagingData{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	size := uint64(g.size)
	rowBytes := size * gridTexelBytes
	paddedRow := common.AlignUp(rowBytes, copyRowAlignment)
	total := paddedRow * size

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: g.label + " Readback",
		Size:  total,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return common.GridStagingData{}, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return common.GridStagingData{}, err
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: g.texture, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				BytesPerRow:  uint32(paddedRow),
				RowsPerImage: uint32(size),
			},
		},
		&wgpu.Extent3D{Width: uint32(size), Height: uint32(size), DepthOrArrayLayers: 1},
	)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return common.GridStagingData{}, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	mapped := false
	staging.MapAsync(wgpu.MapModeRead, 0, total, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		mapped = true
	})
	for !mapped {
		b.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return common.GridStagingData{}, fmt.Errorf("grid %s: map readback buffer: status %d", g.label, status)
	}
	raw := staging.GetMappedRange(0, uint(total))

	out := make([]float32, g.size*g.size*common.TexelChannels)
	packed := common.SliceToBytes(out)
	for row := range size {
		copy(packed[row*rowBytes:(row+1)*rowBytes], raw[row*paddedRow:row*paddedRow+rowBytes])
	}
	staging.Unmap()
	return common.GridStagingData{Texels: out, Size: g.size}, nil
}

func (b *wgpuRendererBackend) ReleaseGridTarget(target GridTarget) {
	g, ok := target.(*wgpuGrid)
	if !ok || g.released {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// Bind groups referencing the grid are dropped with it.
	for _, pass := range b.passes {
		for key, bg := range pass.bindGroups {
			if key.source == target || key.target == target {
				bg.Release()
				delete(pass.bindGroups, key)
			}
		}
	}
	g.view.Release()
	g.texture.Release()
	g.released = true
}

// newPass collects the merged layouts and the declared binding roles of a pipeline's shaders.
func newPass(p pipeline.Pipeline, stages ...shader.Shader) *wgpuPass {
	pass := &wgpuPass{
		layouts:    make(map[int]wgpu.BindGroupLayoutDescriptor),
		roles:      make(map[int]map[int]shader.AnnotationArg),
		uniforms:   bind_group_provider.NewBindGroupProvider(p.PipelineKey() + " Uniforms"),
		instances:  bind_group_provider.NewBindGroupProvider(p.PipelineKey() + " Instances"),
		bindGroups: make(map[bindGroupKey]bind_group_provider.BindGroupProvider),
	}
	for _, s := range stages {
		pass.layouts = mergeBindGroupLayouts(pass.layouts, s.BindGroupLayoutDescriptors())
		for _, decl := range s.Declarations() {
			if decl.Group == nil || decl.Binding == nil {
				continue
			}
			if pass.roles[*decl.Group] == nil {
				pass.roles[*decl.Group] = make(map[int]shader.AnnotationArg)
			}
			pass.roles[*decl.Group][*decl.Binding] = decl.Role()
		}
	}
	return pass
}

// createLayouts creates the bind group layouts and the pipeline layout of a pass.
func (b *wgpuRendererBackend) createLayouts(label string, descriptors map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, *wgpu.PipelineLayout, error) {
	maxGroup := -1
	for g := range descriptors {
		if g > maxGroup {
			maxGroup = g
		}
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		desc := descriptors[g]
		desc.Label = fmt.Sprintf("%s group %d", label, g)
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		bindGroupLayouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, nil, err
	}
	return bindGroupLayouts, pipelineLayout, nil
}

func (b *wgpuRendererBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}
	if _, _, ok := computeShader.Binding(shader.AnnotationArgGridTarget); !ok {
		return errors.New("compute shader declares no grid_target binding")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer s.Release()

	pass := newPass(p, computeShader)
	layouts, pipelineLayout, err := b.createLayouts(p.PipelineKey(), pass.layouts)
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created, layouts)
	b.passes[p] = pass
	return nil
}

func (b *wgpuRendererBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return err
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return err
	}
	defer fs.Release()

	pass := newPass(p, vertexShader, fragmentShader)
	layouts, pipelineLayout, err := b.createLayouts(p.PipelineKey(), pass.layouts)
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(vertexShader.VertexLayouts()))
	for i := range len(vertexShader.VertexLayouts()) {
		for _, l := range vertexShader.VertexLayouts()[i] {
			l.StepMode = p.VertexStepMode()
			vertexLayouts = append(vertexLayouts, l)
		}
	}

	colorTarget := wgpu.ColorTargetState{
		Format:    *b.surfaceFormat,
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		colorTarget.Blend = p.BlendState()
	}
	depthCompare := wgpu.CompareFunctionLess
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{colorTarget},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return err
	}

	p.SetRenderPipeline(created, layouts)
	b.passes[p] = pass
	return nil
}

func (b *wgpuRendererBackend) ReleasePipeline(p pipeline.Pipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pass, ok := b.passes[p]; ok {
		for _, bg := range pass.bindGroups {
			bg.Release()
		}
		pass.uniforms.Release()
		pass.instances.Release()
		delete(b.passes, p)
	}
	p.Release()
}

// writeUniforms uploads the pass uniforms to every pass-specific uniform binding, creating the
// buffers on first use. Camera bindings are served by the shared camera buffer.
// Caller must hold the mutex.
func (b *wgpuRendererBackend) writeUniforms(pass *wgpuPass, u common.Uniform) error {
	if u == nil {
		return nil
	}
	data := u.Marshal()
	var writes []bind_group_provider.BufferWrite
	for group, roles := range pass.roles {
		for binding, role := range roles {
			if role != shader.AnnotationArgSimParams && role != shader.AnnotationArgSpriteParams {
				continue
			}
			slot := slotKey(group, binding)
			if pass.uniforms.Buffer(slot) == nil {
				buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: pass.uniforms.Label(),
					Size:  common.AlignUp(uint64(len(data)), 16),
					Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
				})
				if err != nil {
					return err
				}
				pass.uniforms.SetBuffer(slot, buf)
			}
			writes = append(writes, bind_group_provider.BufferWrite{Provider: pass.uniforms, Slot: slot, Data: data})
		}
	}
	b.writeBuffers(writes)
	return nil
}

// writeBuffers writes all staged buffer writes to the GPU queue. Caller must hold the mutex.
func (b *wgpuRendererBackend) writeBuffers(writes []bind_group_provider.BufferWrite) {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Slot)
		if buf == nil {
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

// bindGroups returns the bind groups of a pass for the given grids, creating and caching
// them on first use. The result is indexed by group. Caller must hold the mutex.
func (b *wgpuRendererBackend) bindGroups(p pipeline.Pipeline, pass *wgpuPass, source, target *wgpuGrid) ([]*wgpu.BindGroup, error) {
	groups := make([]int, 0, len(pass.layouts))
	for g := range pass.layouts {
		groups = append(groups, g)
	}
	sort.Ints(groups)

	out := make([]*wgpu.BindGroup, len(groups))
	for idx, g := range groups {
		key := bindGroupKey{group: g}
		for _, role := range pass.roles[g] {
			switch role {
			case shader.AnnotationArgGridSource:
				key.source = source
			case shader.AnnotationArgGridTarget:
				key.target = target
			}
		}
		if cached, ok := pass.bindGroups[key]; ok {
			out[idx] = cached.BindGroup()
			continue
		}

		layout := pass.layouts[g]
		entries := make([]wgpu.BindGroupEntry, 0, len(layout.Entries))
		for _, entry := range layout.Entries {
			binding := int(entry.Binding)
			e := wgpu.BindGroupEntry{Binding: entry.Binding}
			switch role := pass.roles[g][binding]; role {
			case shader.AnnotationArgGridSource:
				if source == nil {
					return nil, fmt.Errorf("pipeline %s: no source grid for group %d binding %d", p.PipelineKey(), g, binding)
				}
				e.TextureView = source.view
			case shader.AnnotationArgGridTarget:
				if target == nil {
					return nil, fmt.Errorf("pipeline %s: no target grid for group %d binding %d", p.PipelineKey(), g, binding)
				}
				e.TextureView = target.view
			case shader.AnnotationArgCamera:
				e.Buffer = b.camera.Buffer(0)
				e.Size = wgpu.WholeSize
			default:
				buf := pass.uniforms.Buffer(slotKey(g, binding))
				if buf == nil {
					return nil, fmt.Errorf("pipeline %s: binding %d of group %d (%q) has no resource", p.PipelineKey(), binding, g, role)
				}
				e.Buffer = buf
				e.Size = wgpu.WholeSize
			}
			entries = append(entries, e)
		}

		bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("%s group %d", p.PipelineKey(), g),
			Layout:  p.BindGroupLayout(g),
			Entries: entries,
		})
		if err != nil {
			return nil, err
		}
		provider := bind_group_provider.NewBindGroupProvider(p.PipelineKey(), bind_group_provider.WithBindGroup(bindGroup))
		pass.bindGroups[key] = provider
		out[idx] = bindGroup
	}
	return out, nil
}

func (b *wgpuRendererBackend) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		return errors.New("compute frame already open")
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackend) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return nil
	}
	return b.submit(&b.computeFrameEncoder)
}

// submit finishes an encoder, submits it and clears the reference. Caller must hold the mutex.
func (b *wgpuRendererBackend) submit(encoder **wgpu.CommandEncoder) error {
	defer func() {
		(*encoder).Release()
		*encoder = nil
	}()
	commandBuffer, err := (*encoder).Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackend) DispatchGrid(p pipeline.Pipeline, gridPass GridPass) error {
	source, err := b.grid(gridPass.Source)
	if err != nil {
		return err
	}
	target, err := b.grid(gridPass.Target)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pass, ok := b.passes[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, p.PipelineKey())
	}
	if err := b.writeUniforms(pass, gridPass.Uniforms); err != nil {
		return err
	}
	groups, err := b.bindGroups(p, pass, source, target)
	if err != nil {
		return err
	}

	// Outside a compute frame the pass gets its own submission.
	immediate := b.computeFrameEncoder == nil
	if immediate {
		encoder, err := b.device.CreateCommandEncoder(nil)
		if err != nil {
			return err
		}
		b.computeFrameEncoder = encoder
	}

	wg := p.Shader(shader.ShaderTypeCompute).WorkgroupSize()
	computePass := b.computeFrameEncoder.BeginComputePass(nil)
	computePass.SetPipeline(p.Pipeline().(*wgpu.ComputePipeline))
	for i, bg := range groups {
		computePass.SetBindGroup(uint32(i), bg, nil)
	}
	computePass.DispatchWorkgroups(
		uint32(common.CeilDiv(target.size, int(max(wg[0], 1)))),
		uint32(common.CeilDiv(target.size, int(max(wg[1], 1)))),
		1,
	)
	computePass.End()
	computePass.Release()

	if immediate {
		return b.submit(&b.computeFrameEncoder)
	}
	return nil
}

func (b *wgpuRendererBackend) BeginFrame(view common.ViewState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A surface texture still held from the previous frame cannot be acquired twice.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	b.writeBuffers([]bind_group_provider.BufferWrite{{
		Provider: b.camera,
		Slot:     0,
		Data:     camera.NewGPUCameraUniform(view).Marshal(),
	}})

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	frameView, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		frameView.Release()
		surfaceTexture.Release()
		return err
	}

	// With MSAA the MSAA texture is the attachment and the swapchain view the ResolveTarget.
	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = frameView
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = frameView
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameSurface = surfaceTexture
	b.frameView = frameView
	return nil
}

func (b *wgpuRendererBackend) DrawSprites(p pipeline.Pipeline, batch SpriteBatch) error {
	source, err := b.grid(batch.Source)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoFrame
	}
	pass, ok := b.passes[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, p.PipelineKey())
	}
	if err := b.writeUniforms(pass, batch.Uniforms); err != nil {
		return err
	}
	groups, err := b.bindGroups(p, pass, source, nil)
	if err != nil {
		return err
	}

	// The coordinate table never changes for a given count, so it is uploaded once.
	if pass.instances.VertexBuffer() == nil || pass.instances.VertexCount() != batch.Count {
		data := common.SliceToBytes(batch.Coords[:batch.Count*2])
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: pass.instances.Label(),
			Size:  uint64(len(data)),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		b.queue.WriteBuffer(buf, 0, data)
		pass.instances.SetVertexBuffer(buf, batch.Count)
	}

	b.framePass.SetPipeline(p.Pipeline().(*wgpu.RenderPipeline))
	for i, bg := range groups {
		b.framePass.SetBindGroup(uint32(i), bg, nil)
	}
	b.framePass.SetVertexBuffer(0, pass.instances.VertexBuffer(), 0, wgpu.WholeSize)
	b.framePass.Draw(6, uint32(batch.Count), 0, 0)
	return nil
}

func (b *wgpuRendererBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoFrame
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil

	if err := b.submit(&b.frameEncoder); err != nil {
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameSurface = nil
		b.frameView = nil
		return err
	}
	return nil
}

func (b *wgpuRendererBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.camera.Release()
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
}

// mergeBindGroupLayouts merges bind group layout descriptors of several shader stages.
// Bindings present in both maps have their visibility ORed together.
//
// Parameters:
//   - a: descriptors collected so far, keyed by group index
//   - c: descriptors of the next stage, keyed by group index
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(a, c map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(a)+len(c))
	for g, desc := range a {
		merged[g] = desc
	}
	for g, desc := range c {
		existing, ok := merged[g]
		if !ok {
			merged[g] = desc
			continue
		}

		entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
		for _, e := range existing.Entries {
			entryMap[e.Binding] = e
		}
		for _, e := range desc.Entries {
			if prev, ok := entryMap[e.Binding]; ok {
				prev.Visibility |= e.Visibility
				entryMap[e.Binding] = prev
			} else {
				entryMap[e.Binding] = e
			}
		}

		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Label: existing.Label, Entries: entries}
	}
	return merged
}
