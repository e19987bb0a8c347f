// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with generated WGSL declarations
// or injected snippet source, and collects a declarations list that the renderer uses
// to bind uniforms and grid targets.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/particle/kernel"
)

// registryEntry pairs an embedded WGSL snippet with the type name used in generated declarations.
// Helper snippets have an empty Type.
type registryEntry struct {
	Source string
	Type   string
}

type preProcessor struct {
	registry             map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string
	declarations         []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations.
type PreProcessor interface {
	// Process replaces @oxy: annotations with their WGSL output. Include annotations are
	// replaced with the snippet source, group annotations with a generated @group/@binding
	// declaration. Provider annotations produce no output. The declarations list is reset
	// at the start of every call.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed or a snippet is included twice
	Process(source string) (string, error)

	// Declarations returns the group and provider annotations collected by the most recent
	// Process call, in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's registered WGSL snippets.
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		registry: map[AnnotationArg]registryEntry{
			AnnotationArgCamera:       {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
			AnnotationArgSimParams:    {Source: kernel.GPUSimParamsSource, Type: "SimParams"},
			AnnotationArgSpriteParams: {Source: kernel.GPUSpriteParamsSource, Type: "SpriteParams"},
			annotationArgParticleHash: {Source: kernel.GPUParticleHashSource},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform: "var<uniform>",
			annotationArgStorageTypeRead:    "var<storage, read>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = nil
	included := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if included[a.Args[0]] {
				return "", fmt.Errorf("line %d: %q is already included", i+1, a.Args[0])
			}
			included[a.Args[0]] = true
			out = append(out, p.registry[a.Args[0]].Source)
		case AnnotationTypeBindingGroup:
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			entry := p.registry[a.Args[2]]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
