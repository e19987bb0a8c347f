// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive struct injection, bind group declaration, and resource role
// registration. The parsed results are stored as Annotation values and consumed by the
// PreProcessor and the renderer backends to wire grid targets and uniforms to bindings.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered snippet (struct or helper
	// functions) at the annotation site. It produces no declaration.
	//
	// Syntax: //@oxy:include <snippet>
	//
	// Example: //@oxy:include sim_params
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration for a
	// registered struct and records it in the declarations list so the renderer can find the
	// uniform binding without string lookups.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 0 storage_uniform camera camera
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider registers the role of a hand-written binding (grid textures) for a
	// group and binding without generating any WGSL output.
	//
	// Syntax: //@oxy:provider <group> <binding> <role>
	//
	// Example: //@oxy:provider 0 1 grid_source
	AnnotationTypeProvider AnnotationType = "provider"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed (include, group, or provider).
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = snippet key (e.g. "camera")
	//   - group:    [0] = address space, [1] = var name, [2] = struct type key
	//   - provider: [0] = binding role (e.g. "grid_source")
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source.
	Line int

	// Group is the @group index for group and provider annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for group and provider annotations. Nil for include annotations.
	Binding *int
}

// Role returns the argument that identifies what the declared binding holds: the struct type
// for group annotations and the role for provider annotations.
func (a Annotation) Role() AnnotationArg {
	switch a.Type {
	case AnnotationTypeBindingGroup:
		return a.Args[2]
	case AnnotationTypeProvider:
		return a.Args[0]
	}
	return ""
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Snippet arguments ──────────────────────────────────────────────────────────
// Struct types can appear in include and group annotations; helper snippets only in include.

const (
	// AnnotationArgCamera identifies the CameraUniform struct.
	// Source: engine/camera/assets/camera_uniform.wgsl
	AnnotationArgCamera AnnotationArg = "camera"

	// AnnotationArgSimParams identifies the SimParams struct of the field update pass.
	// Source: engine/particle/kernel/assets/sim_params.wgsl
	AnnotationArgSimParams AnnotationArg = "sim_params"

	// AnnotationArgSpriteParams identifies the SpriteParams struct of the sprite pass.
	// Source: engine/particle/kernel/assets/sprite_params.wgsl
	AnnotationArgSpriteParams AnnotationArg = "sprite_params"

	// annotationArgParticleHash identifies the pcg/hash3 helper functions.
	// Source: engine/particle/kernel/assets/hash.wgsl
	annotationArgParticleHash AnnotationArg = "particle_hash"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	// annotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// annotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"
)

// ── Binding role arguments ─────────────────────────────────────────────────────

const (
	// AnnotationArgGridSource identifies the sampled grid a pass reads particle state from.
	AnnotationArgGridSource AnnotationArg = "grid_source"

	// AnnotationArgGridTarget identifies the storage grid the field update pass writes.
	AnnotationArgGridTarget AnnotationArg = "grid_target"
)

var validIncludes = []AnnotationArg{
	AnnotationArgCamera,
	AnnotationArgSimParams,
	AnnotationArgSpriteParams,
	annotationArgParticleHash,
}

var validStructTypes = []AnnotationArg{
	AnnotationArgCamera,
	AnnotationArgSimParams,
	AnnotationArgSpriteParams,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
}

var validRoles = []AnnotationArg{
	AnnotationArgGridSource,
	AnnotationArgGridTarget,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validIncludes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown snippet %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly five arguments (group, binding, address space, var name, struct type)", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case string(AnnotationTypeProvider):
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @oxy provider annotation requires exactly three arguments (group, binding, role)", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validRoles, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown binding role %q in @oxy provider annotation", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

func parseSlot(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil || group < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q", lineNum, groupArg)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil || binding < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q", lineNum, bindingArg)
	}
	return group, binding, nil
}
