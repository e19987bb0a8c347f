package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are GPU allocated resources and must be released when no longer needed.
	// They are populated by the renderer backend, not by user-creation.

	// bindGroup is the GPU bind group created for this provider, or nil if not initialized.
	bindGroup *wgpu.BindGroup
	// buffers holds the GPU buffers owned by this provider, keyed by slot.
	buffers map[int]*wgpu.Buffer
	// vertexBuffer holds per-instance vertex data, or nil.
	vertexBuffer *wgpu.Buffer
	// vertexCount is the number of vertices (or instances) stored in vertexBuffer.
	vertexCount int
}

// BindGroupProvider groups the GPU resources a backend creates for one pass: uniform buffers,
// an instance vertex buffer, or a bind group wiring them to grid textures. A provider owns
// everything stored on it and frees it on Release.
//
// Usage pattern:
//  1. The backend creates a provider with a label when a pipeline is registered
//  2. Buffers and bind groups are created lazily and stored with SetBuffer / SetBindGroup
//  3. Per-frame data is uploaded through BufferWrite values
//  4. Release frees every stored resource when the pipeline is released
type BindGroupProvider interface {
	// Release releases all GPU resources held by this provider.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group, or nil if not initialized.
	BindGroup() *wgpu.BindGroup

	// Buffer returns the buffer stored at a slot, or nil.
	//
	// Parameters:
	//   - slot: the slot the buffer was stored under
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(slot int) *wgpu.Buffer

	// Buffers returns all buffers of this provider keyed by slot.
	Buffers() map[int]*wgpu.Buffer

	// VertexBuffer returns the GPU vertex buffer, or nil if not initialized.
	VertexBuffer() *wgpu.Buffer

	// VertexCount returns the number of vertices stored in the vertex buffer.
	VertexCount() int

	// SetBindGroup stores the bind group, releasing the previous one.
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBuffer stores a buffer at a slot, releasing the previous one.
	SetBuffer(slot int, buf *wgpu.Buffer)

	// SetVertexBuffer stores the vertex buffer and its vertex count, releasing the previous buffer.
	SetVertexBuffer(buf *wgpu.Buffer, count int)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: the debug label used for every resource created for the provider
//   - options: functional options to pre-populate the provider
//
// Returns:
//   - BindGroupProvider: the created provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[int]*wgpu.Buffer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(slot int) *wgpu.Buffer {
	return p.buffers[slot]
}

func (p *bindGroupProvider) Buffers() map[int]*wgpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) VertexCount() int {
	return p.vertexCount
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBuffer(slot int, buf *wgpu.Buffer) {
	if old := p.buffers[slot]; old != nil && old != buf {
		old.Release()
	}
	p.buffers[slot] = buf
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer, count int) {
	if p.vertexBuffer != nil && p.vertexBuffer != buf {
		p.vertexBuffer.Release()
	}
	p.vertexBuffer = buf
	p.vertexCount = count
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	for slot, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, slot)
	}
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	p.vertexCount = 0
}
