package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader provides.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	}
	return fmt.Sprintf("ShaderType(%d)", int(t))
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              map[int][]wgpu.VertexBufferLayout
	workGroupSize              [3]uint32
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor
	declarations               []Annotation
}

// Shader is a pre-processed and parsed WGSL program. It exposes the metadata the renderer
// backends need to build pipelines and bind groups: entry point, layouts, workgroup size and
// the @oxy declarations naming each binding's role.
type Shader interface {
	// Key retrieves the unique identifier for this shader.
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	Source() string

	// ShaderType returns the pipeline stage of the shader.
	ShaderType() ShaderType

	// EntryPoint returns the entry point function name.
	EntryPoint() string

	// WorkgroupSize returns the workgroup size for compute shaders, [0, 0, 0] otherwise.
	WorkgroupSize() [3]uint32

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name bound at a group and binding, or "" if none.
	BindGroupVarName(group, binding int) string

	// VertexLayouts retrieves the vertex buffer layouts of a vertex shader.
	VertexLayouts() map[int][]wgpu.VertexBufferLayout

	// Module returns the shader module descriptor holding the WGSL code.
	Module() *wgpu.ShaderModuleDescriptor

	// Declarations returns the group and provider annotations of the shader in source order.
	Declarations() []Annotation

	// Binding looks up the group and binding declared for a role: a struct type for group
	// annotations or a binding role for provider annotations.
	//
	// Parameters:
	//   - role: the struct type or binding role to look for
	//
	// Returns:
	//   - int: the group index
	//   - int: the binding index
	//   - bool: false when the shader declares no binding for the role
	Binding(role AnnotationArg) (int, int, bool)
}

var _ Shader = &shader{}

// NewShader pre-processes and parses a WGSL source into a Shader.
//
// Parameters:
//   - key: a unique identifier for the shader, used as the module label
//   - shaderType: the pipeline stage the shader provides
//   - source: the raw WGSL source, usually embedded with go:embed
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the source is empty, an annotation is malformed, or no entry point for the stage exists
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %s: empty source", key)
	}
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}

	s := &shader{
		key:          key,
		source:       processed,
		shaderType:   shaderType,
		declarations: pp.Declarations(),
		module: &wgpu.ShaderModuleDescriptor{
			Label:          key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: processed},
		},
	}
	s.entryPoint = parseEntryPoint(processed, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no @%s entry point", key, shaderType)
	}

	var visibility wgpu.ShaderStage
	switch shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
		s.vertexLayouts = parseVertexLayouts(processed)
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
		s.workGroupSize = parseWorkgroupSize(processed)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(processed, visibility)
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) VertexLayouts() map[int][]wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}

func (s *shader) Binding(role AnnotationArg) (int, int, bool) {
	for _, d := range s.declarations {
		if d.Role() == role {
			return *d.Group, *d.Binding, true
		}
	}
	return 0, 0, false
}
