package particle

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Color is a linear RGB triple in [0, 1]. In YAML it is written either as a sequence
// `[r, g, b]` or as a hex string `"#rrggbb"`.
type Color mgl32.Vec3

// HexColor parses a "#rrggbb" or "#rgb" string.
//
// Parameters:
//   - hex: the colour string
//
// Returns:
//   - Color: the parsed colour
//   - error: a ConfigurationError if the string is malformed
func HexColor(hex string) (Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return Color{}, configErr("color", "%q is not a hex colour: %v", hex, err)
	}
	return Color{float32(c.R), float32(c.G), float32(c.B)}, nil
}

// Vec3 returns the colour as a vector.
func (c Color) Vec3() mgl32.Vec3 {
	return mgl32.Vec3(c)
}

// Hex formats the colour as "#rrggbb", clamping out-of-range channels.
func (c Color) Hex() string {
	return colorful.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2])}.Clamped().Hex()
}

func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := HexColor(value.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var rgb []float32
	if err := value.Decode(&rgb); err != nil {
		return fmt.Errorf("line %d: color: %w", value.Line, err)
	}
	if len(rgb) != 3 {
		return configErr("color", "want 3 channels, got %d", len(rgb))
	}
	*c = Color{rgb[0], rgb[1], rgb[2]}
	return nil
}

func (c Color) MarshalYAML() (any, error) {
	return []float32{c[0], c[1], c[2]}, nil
}

// Options is the full configuration bundle of a particle system. Every field is a value type,
// so copying an Options never aliases caller memory.
type Options struct {
	// Size is the side length of the particle grid; the system holds Size*Size particles.
	Size int `yaml:"size"`
	// CurlScale is the strength of the curl-noise swirl.
	CurlScale float32 `yaml:"curl_scale"`
	// ForwardSpeed is the directed drift velocity before SpeedMultiplier is applied.
	ForwardSpeed mgl32.Vec3 `yaml:"forward_speed"`
	// NoiseScale is the spatial frequency of the noise field.
	NoiseScale float32 `yaml:"noise_scale"`

	BasePointSize float32 `yaml:"base_point_size"`
	MinSize       float32 `yaml:"min_size"`
	MaxSize       float32 `yaml:"max_size"`
	// TargetPos is the point particles shrink towards, before PositionOffset.
	TargetPos  mgl32.Vec3 `yaml:"target_pos"`
	NearRadius float32    `yaml:"near_radius"`
	// ShrinkSpeed is the exponent applied to the near-target shrink factor.
	ShrinkSpeed float32 `yaml:"shrink_speed"`

	// StartPos is the corner of the spawn box, before PositionOffset.
	StartPos mgl32.Vec3 `yaml:"start_pos"`
	// StartArea is the extent of the spawn box; components may be negative or zero.
	StartArea mgl32.Vec3 `yaml:"start_area"`
	// EndPos is the travel endpoint. It is not shifted by PositionOffset.
	EndPos mgl32.Vec3 `yaml:"end_pos"`

	Color          Color   `yaml:"color"`
	ColorVariation float32 `yaml:"color_variation"`

	SpeedMultiplier float32    `yaml:"speed_multiplier"`
	PositionOffset  mgl32.Vec3 `yaml:"position_offset"`

	// Respawn re-jitters particles into the spawn box once they reach EndPos.
	Respawn       bool    `yaml:"respawn"`
	RespawnRadius float32 `yaml:"respawn_radius"`

	// Seed makes the initial scatter and the noise field reproducible.
	Seed uint64 `yaml:"seed"`
	// Glow marks the drawable glow-eligible when it is added to a scene.
	Glow bool `yaml:"glow"`
}

// defaultOptions is never handed out directly; DefaultOptions returns a copy.
var defaultOptions = Options{
	Size:            8,
	CurlScale:       1.5,
	ForwardSpeed:    mgl32.Vec3{4, 0, 0},
	NoiseScale:      0.15,
	BasePointSize:   300,
	MinSize:         5,
	MaxSize:         10,
	TargetPos:       mgl32.Vec3{0, 6, -4},
	NearRadius:      2.0,
	ShrinkSpeed:     0.7,
	StartPos:        mgl32.Vec3{-10, 6, -4},
	StartArea:       mgl32.Vec3{0, 12, 8},
	EndPos:          mgl32.Vec3{16, 6, -4},
	Color:           Color{0.77, 0.2, 1.0},
	ColorVariation:  0,
	SpeedMultiplier: 1,
	PositionOffset:  mgl32.Vec3{0, 0, 0},
	Respawn:         true,
	RespawnRadius:   1.0,
	Seed:            1,
}

// DefaultOptions returns a copy of the default configuration.
func DefaultOptions() Options {
	return defaultOptions
}

// Validate checks every option and returns the first offending field as a *ConfigurationError.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return configErr("size", "must be positive, got %d", o.Size)
	}
	scalars := []struct {
		field string
		v     float32
	}{
		{"curl_scale", o.CurlScale},
		{"noise_scale", o.NoiseScale},
		{"base_point_size", o.BasePointSize},
		{"min_size", o.MinSize},
		{"max_size", o.MaxSize},
		{"near_radius", o.NearRadius},
		{"shrink_speed", o.ShrinkSpeed},
		{"color_variation", o.ColorVariation},
		{"speed_multiplier", o.SpeedMultiplier},
		{"respawn_radius", o.RespawnRadius},
	}
	for _, s := range scalars {
		if !common.IsFinite(s.v) {
			return configErr(s.field, "must be finite, got %v", s.v)
		}
	}
	vectors := []struct {
		field string
		v     mgl32.Vec3
	}{
		{"forward_speed", o.ForwardSpeed},
		{"target_pos", o.TargetPos},
		{"start_pos", o.StartPos},
		{"start_area", o.StartArea},
		{"end_pos", o.EndPos},
		{"color", o.Color.Vec3()},
		{"position_offset", o.PositionOffset},
	}
	for _, vec := range vectors {
		if !common.IsFiniteVec3(vec.v) {
			return configErr(vec.field, "must be finite, got %v", vec.v)
		}
	}
	sizes := []struct {
		field string
		v     float32
	}{
		{"base_point_size", o.BasePointSize},
		{"min_size", o.MinSize},
		{"max_size", o.MaxSize},
	}
	for _, s := range sizes {
		if s.v < 0 {
			return configErr(s.field, "must not be negative, got %v", s.v)
		}
	}
	if o.MinSize > o.MaxSize {
		return configErr("min_size", "%v exceeds max_size %v", o.MinSize, o.MaxSize)
	}
	if o.NearRadius < 0 {
		return configErr("near_radius", "must not be negative, got %v", o.NearRadius)
	}
	if o.ColorVariation < 0 {
		return configErr("color_variation", "must not be negative, got %v", o.ColorVariation)
	}
	if o.RespawnRadius < 0 {
		return configErr("respawn_radius", "must not be negative, got %v", o.RespawnRadius)
	}
	return nil
}

// DerivedConfig holds the values computed from Options that the two passes actually consume.
type DerivedConfig struct {
	// EffectiveDrift is ForwardSpeed * SpeedMultiplier.
	EffectiveDrift mgl32.Vec3
	// EffectiveTarget is TargetPos + PositionOffset.
	EffectiveTarget mgl32.Vec3
	// EffectiveSpawnOrigin is StartPos + PositionOffset.
	EffectiveSpawnOrigin mgl32.Vec3
	// SpawnExtent is StartArea.
	SpawnExtent mgl32.Vec3
	// EndPos is the travel endpoint as configured.
	EndPos mgl32.Vec3
}

// Derive computes the derived configuration of o.
func (o Options) Derive() DerivedConfig {
	return DerivedConfig{
		EffectiveDrift:       o.ForwardSpeed.Mul(o.SpeedMultiplier),
		EffectiveTarget:      o.TargetPos.Add(o.PositionOffset),
		EffectiveSpawnOrigin: o.StartPos.Add(o.PositionOffset),
		SpawnExtent:          o.StartArea,
		EndPos:               o.EndPos,
	}
}
