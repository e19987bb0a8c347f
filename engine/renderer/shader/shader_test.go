package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-particles/engine/particle/kernel"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    AnnotationType
		wantNil bool
		wantErr bool
	}{
		{name: "plain code", line: "let x = 1.0;", wantNil: true},
		{name: "ordinary comment", line: "// just a note", wantNil: true},
		{name: "include", line: "//@oxy:include camera", want: annotationTypeInclude},
		{name: "group", line: "  //@oxy:group 0 0 storage_uniform params sim_params", want: AnnotationTypeBindingGroup},
		{name: "provider", line: "//@oxy:provider 0 2 grid_target", want: AnnotationTypeProvider},
		{name: "unknown include", line: "//@oxy:include lights", wantErr: true},
		{name: "unknown role", line: "//@oxy:provider 0 1 depth", wantErr: true},
		{name: "bad group index", line: "//@oxy:group x 0 storage_uniform p sim_params", wantErr: true},
		{name: "bad address space", line: "//@oxy:group 0 0 workgroup p sim_params", wantErr: true},
		{name: "unknown directive", line: "//@oxy:define FOO", wantErr: true},
		{name: "annotation after code", line: "let x = 1.0; //@oxy:include camera", wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseAnnotation(tt.line, 7)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAnnotation(%q) succeeded, want error", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAnnotation(%q): %v", tt.line, err)
			}
			if tt.wantNil {
				if a != nil {
					t.Fatalf("parseAnnotation(%q) = %+v, want nil", tt.line, a)
				}
				return
			}
			if a == nil || a.Type != tt.want {
				t.Fatalf("parseAnnotation(%q) = %+v, want type %s", tt.line, a, tt.want)
			}
			if a.Line != 7 {
				t.Errorf("Line = %d, want 7", a.Line)
			}
		})
	}
}

func TestPreProcessorInjectsDeclarations(t *testing.T) {
	src := strings.Join([]string{
		"//@oxy:include sim_params",
		"//@oxy:group 0 0 storage_uniform params sim_params",
		"//@oxy:provider 0 1 grid_source",
		"@group(0) @binding(1) var source_grid: texture_2d<f32>;",
	}, "\n")

	pp := NewPreProcessor()
	out, err := pp.Process(src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(out, "struct SimParams") {
		t.Error("SimParams struct was not injected")
	}
	if !strings.Contains(out, "@group(0) @binding(0) var<uniform> params: SimParams;") {
		t.Errorf("missing generated declaration in:\n%s", out)
	}
	decls := pp.Declarations()
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Role() != AnnotationArgSimParams || decls[1].Role() != AnnotationArgGridSource {
		t.Errorf("roles = %s, %s", decls[0].Role(), decls[1].Role())
	}
}

func TestPreProcessorRejectsDuplicateInclude(t *testing.T) {
	src := "//@oxy:include camera\n//@oxy:include camera\n"
	if _, err := NewPreProcessor().Process(src); err == nil {
		t.Fatal("duplicate include accepted")
	}
}

func TestNewShaderErrors(t *testing.T) {
	if _, err := NewShader("empty", ShaderTypeCompute, ""); err == nil {
		t.Error("empty source accepted")
	}
	if _, err := NewShader("no-entry", ShaderTypeCompute, "fn helper() {}"); err == nil {
		t.Error("source without @compute entry point accepted")
	}
	if _, err := NewShader("bad-annotation", ShaderTypeCompute, "//@oxy:include nope\n@compute @workgroup_size(1) fn main() {}"); err == nil {
		t.Error("malformed annotation accepted")
	}
}

func TestFieldUpdateShaderLayout(t *testing.T) {
	s, err := NewShader("field", ShaderTypeCompute, kernel.FieldUpdateSource)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if s.EntryPoint() != "cs_main" {
		t.Errorf("EntryPoint = %q, want cs_main", s.EntryPoint())
	}
	if s.WorkgroupSize() != [3]uint32{8, 8, 1} {
		t.Errorf("WorkgroupSize = %v, want [8 8 1]", s.WorkgroupSize())
	}

	desc, ok := s.BindGroupLayoutDescriptors()[0]
	if !ok || len(desc.Entries) != 3 {
		t.Fatalf("group 0 = %+v, want 3 entries", desc)
	}
	params, source, target := desc.Entries[0], desc.Entries[1], desc.Entries[2]
	if params.Buffer.Type != wgpu.BufferBindingTypeUniform || params.Buffer.MinBindingSize != uint64(new(kernel.GPUSimParams).Size()) {
		t.Errorf("params entry = %+v", params.Buffer)
	}
	if source.Texture.SampleType != wgpu.TextureSampleTypeUnfilterableFloat {
		t.Errorf("grid source sample type = %v, want unfilterable float", source.Texture.SampleType)
	}
	if target.StorageTexture.Format != wgpu.TextureFormatRGBA32Float || target.StorageTexture.Access != wgpu.StorageTextureAccessWriteOnly {
		t.Errorf("grid target = %+v", target.StorageTexture)
	}

	for _, tc := range []struct {
		role    AnnotationArg
		binding int
	}{
		{AnnotationArgSimParams, 0},
		{AnnotationArgGridSource, 1},
		{AnnotationArgGridTarget, 2},
	} {
		g, b, ok := s.Binding(tc.role)
		if !ok || g != 0 || b != tc.binding {
			t.Errorf("Binding(%s) = (%d, %d, %v), want (0, %d, true)", tc.role, g, b, ok, tc.binding)
		}
	}
	if _, _, ok := s.Binding(AnnotationArgCamera); ok {
		t.Error("field shader should not declare a camera binding")
	}
}

func TestSpriteVertexShaderLayout(t *testing.T) {
	s, err := NewShader("sprite-vs", ShaderTypeVertex, kernel.SpriteVertexSource)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	layouts := s.VertexLayouts()
	if len(layouts) != 1 || len(layouts[0]) != 1 {
		t.Fatalf("vertex layouts = %+v, want one buffer", layouts)
	}
	l := layouts[0][0]
	if l.ArrayStride != 8 || len(l.Attributes) != 1 || l.Attributes[0].Format != wgpu.VertexFormatFloat32x2 {
		t.Errorf("coord layout = %+v", l)
	}

	cam, ok := s.BindGroupLayoutDescriptors()[0]
	if !ok || cam.Entries[0].Buffer.MinBindingSize != 96 {
		t.Errorf("camera group = %+v, want a 96 byte uniform", cam)
	}
	if g, b, ok := s.Binding(AnnotationArgGridSource); !ok || g != 1 || b != 1 {
		t.Errorf("grid source binding = (%d, %d, %v)", g, b, ok)
	}
	if name := s.BindGroupVarName(1, 0); name != "sprite" {
		t.Errorf("BindGroupVarName(1, 0) = %q, want sprite", name)
	}
}

func TestCompileParticlePrograms(t *testing.T) {
	programs := []struct {
		key        string
		shaderType ShaderType
		source     string
	}{
		{"field", ShaderTypeCompute, kernel.FieldUpdateSource},
		{"sprite-vs", ShaderTypeVertex, kernel.SpriteVertexSource},
		{"sprite-fs", ShaderTypeFragment, kernel.SpriteFragmentSource},
	}
	for _, p := range programs {
		t.Run(p.key, func(t *testing.T) {
			s, err := NewShader(p.key, p.shaderType, p.source)
			if err != nil {
				t.Fatalf("NewShader: %v", err)
			}
			spirv, err := Compile(s)
			if err != nil {
				t.Skipf("naga could not compile %s: %v", p.key, err)
			}
			if len(spirv)%4 != 0 {
				t.Errorf("SPIR-V length %d is not word aligned", len(spirv))
			}
		})
	}
}
