package particle

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Names of the built-in presets.
const (
	PresetFire  = "fire"
	PresetWater = "water"
	PresetMagic = "magic"
	PresetSpark = "spark"
)

//go:embed assets/presets.yaml
var builtinPresets []byte

var (
	presetsMu sync.RWMutex
	presets   = mustLoadPresets()
)

func mustLoadPresets() map[string]Options {
	out := make(map[string]Options)
	if err := decodePresets(bytes.NewReader(builtinPresets), out); err != nil {
		panic(fmt.Sprintf("particle: embedded presets: %v", err))
	}
	return out
}

// decodePresets decodes a YAML mapping of preset name to options into dst. A name already in
// dst is decoded over its existing options, any other name over the defaults.
func decodePresets(r io.Reader, dst map[string]Options) error {
	var doc map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("particle: decode presets: %w", err)
	}

	decoded := make(map[string]Options, len(doc))
	for name, node := range doc {
		o, ok := dst[name]
		if !ok {
			o = DefaultOptions()
		}
		if err := node.Decode(&o); err != nil {
			return fmt.Errorf("particle: preset %q: %w", name, err)
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("particle: preset %q: %w", name, err)
		}
		decoded[name] = o
	}
	for name, o := range decoded {
		dst[name] = o
	}
	return nil
}

// RegisterPresets merges a YAML document of presets over the registered ones. The document maps
// preset names to option keys; unlisted keys keep their current (or default) value. Nothing is
// registered when any preset is invalid.
//
// Parameters:
//   - r: the YAML source
//
// Returns:
//   - error: an error if the document is malformed or a preset fails validation
func RegisterPresets(r io.Reader) error {
	presetsMu.Lock()
	defer presetsMu.Unlock()
	return decodePresets(r, presets)
}

// Preset returns a copy of the named preset.
//
// Parameters:
//   - name: the preset name, e.g. PresetFire
//
// Returns:
//   - Options: the preset options
//   - error: a *ConfigurationError if no such preset is registered
func Preset(name string) (Options, error) {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	o, ok := presets[name]
	if !ok {
		return Options{}, configErr("preset", "unknown preset %q", name)
	}
	return o, nil
}

// PresetNames returns the registered preset names in sorted order.
func PresetNames() []string {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewPresetParticleSystem creates a particle system from a named preset. The given options are
// applied after the preset, so each one overrides a single preset field.
//
// Parameters:
//   - name: the preset name
//   - options: overrides applied in order
//
// Returns:
//   - ParticleSystem: the new detached system
//   - error: a *ConfigurationError for an unknown preset or invalid overrides
func NewPresetParticleSystem(name string, options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	preset, err := Preset(name)
	if err != nil {
		return nil, err
	}
	return NewParticleSystem(append([]ParticleSystemBuilderOption{WithOptions(preset)}, options...)...)
}

// NewFireParticles creates a warm, fast, rising system.
func NewFireParticles(options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	return NewPresetParticleSystem(PresetFire, options...)
}

// NewWaterParticles creates a cool system flowing slightly downwards.
func NewWaterParticles(options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	return NewPresetParticleSystem(PresetWater, options...)
}

// NewMagicParticles creates a slow purple system with large sprites and strong swirl.
func NewMagicParticles(options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	return NewPresetParticleSystem(PresetMagic, options...)
}

// NewSparkParticles creates a fast golden system with small sprites.
func NewSparkParticles(options ...ParticleSystemBuilderOption) (ParticleSystem, error) {
	return NewPresetParticleSystem(PresetSpark, options...)
}
