package particle

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
)

// defaultMaxStep caps the wall-clock delta consumed by Update.
const defaultMaxStep float32 = 1.0 / 15.0

// config is the mutable construction state the builder options write to.
type config struct {
	options Options
	label   string
	logger  *slog.Logger
	clock   func() time.Time
	maxStep float32
}

// ParticleSystemBuilderOption is a functional option applied to a particle system during
// construction via NewParticleSystem, or later via Reconfigure.
type ParticleSystemBuilderOption func(*config) error

// WithOptions replaces the whole option bundle. Options applied after it override single fields.
//
// Parameters:
//   - o: the option bundle, copied
//
// Returns:
//   - ParticleSystemBuilderOption: a function that applies the bundle to a particle system
func WithOptions(o Options) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options = o
		return nil
	}
}

// WithLabel sets the debug label used for grid targets, pipeline keys and the drawable.
func WithLabel(label string) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.label = label
		return nil
	}
}

// WithSize sets the grid side length. The system simulates size*size particles.
//
// Parameters:
//   - size: the grid side length, must be positive
//
// Returns:
//   - ParticleSystemBuilderOption: a function that applies the size option to a particle system
func WithSize(size int) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.Size = size
		return nil
	}
}

// WithCurlScale sets the strength of the curl-noise swirl.
func WithCurlScale(scale float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.CurlScale = scale
		return nil
	}
}

// WithForwardSpeed sets the directed drift velocity before the speed multiplier.
func WithForwardSpeed(v mgl32.Vec3) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.ForwardSpeed = v
		return nil
	}
}

// WithNoiseScale sets the spatial frequency of the noise field.
func WithNoiseScale(scale float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.NoiseScale = scale
		return nil
	}
}

// WithBasePointSize sets the sprite size numerator divided by the camera distance.
func WithBasePointSize(size float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.BasePointSize = size
		return nil
	}
}

// WithSizeRange sets the sprite size clamp in pixels.
//
// Parameters:
//   - minSize: the smallest sprite diameter
//   - maxSize: the largest sprite diameter, not below minSize
//
// Returns:
//   - ParticleSystemBuilderOption: a function that applies the size range to a particle system
func WithSizeRange(minSize, maxSize float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.MinSize = minSize
		c.options.MaxSize = maxSize
		return nil
	}
}

// WithMinSize sets the smallest sprite diameter in pixels.
func WithMinSize(size float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.MinSize = size
		return nil
	}
}

// WithMaxSize sets the largest sprite diameter in pixels.
func WithMaxSize(size float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.MaxSize = size
		return nil
	}
}

// WithTargetPos sets the point particles shrink towards, before the position offset.
func WithTargetPos(p mgl32.Vec3) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.TargetPos = p
		return nil
	}
}

// WithNearRadius sets the distance from the target inside which sprites shrink.
// Zero disables the shrink and pins every sprite to the minimum size.
func WithNearRadius(radius float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.NearRadius = radius
		return nil
	}
}

// WithShrinkSpeed sets the exponent of the near-target shrink factor.
func WithShrinkSpeed(speed float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.ShrinkSpeed = speed
		return nil
	}
}

// WithStartPos sets the corner of the spawn box, before the position offset.
func WithStartPos(p mgl32.Vec3) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.StartPos = p
		return nil
	}
}

// WithStartArea sets the extent of the spawn box. Components may be negative or zero.
func WithStartArea(extent mgl32.Vec3) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.StartArea = extent
		return nil
	}
}

// WithEndPos sets the travel endpoint.
func WithEndPos(p mgl32.Vec3) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.EndPos = p
		return nil
	}
}

// WithColor sets the base sprite colour.
func WithColor(color Color) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.Color = color
		return nil
	}
}

// WithHexColor sets the base sprite colour from a "#rrggbb" string.
//
// Parameters:
//   - hex: the colour string
//
// Returns:
//   - ParticleSystemBuilderOption: a function that fails with a ConfigurationError on a malformed string
func WithHexColor(hex string) ParticleSystemBuilderOption {
	return func(c *config) error {
		color, err := HexColor(hex)
		if err != nil {
			return err
		}
		c.options.Color = color
		return nil
	}
}

// WithColorVariation sets the per-particle colour jitter amplitude.
func WithColorVariation(variation float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.ColorVariation = variation
		return nil
	}
}

// WithSpeedMultiplier scales the forward drift.
func WithSpeedMultiplier(multiplier float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.SpeedMultiplier = multiplier
		return nil
	}
}

// WithPositionOffset shifts the spawn box and the shrink target in world space.
func WithPositionOffset(offset mgl32.Vec3) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.PositionOffset = offset
		return nil
	}
}

// WithRespawn enables or disables re-jittering particles that reach the endpoint.
func WithRespawn(enabled bool) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.Respawn = enabled
		return nil
	}
}

// WithRespawnRadius sets the distance from the endpoint at which a particle respawns.
func WithRespawnRadius(radius float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.RespawnRadius = radius
		return nil
	}
}

// WithSeed sets the seed of the initial scatter and the noise field.
func WithSeed(seed uint64) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.Seed = seed
		return nil
	}
}

// WithGlow marks the drawable glow-eligible when it is added to a scene.
func WithGlow(glow bool) ParticleSystemBuilderOption {
	return func(c *config) error {
		c.options.Glow = glow
		return nil
	}
}

// WithLogger sets the logger of the particle system. Nil keeps the shared engine logger.
func WithLogger(l *slog.Logger) ParticleSystemBuilderOption {
	return func(c *config) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

// WithClock replaces the wall clock read by Update.
func WithClock(clock func() time.Time) ParticleSystemBuilderOption {
	return func(c *config) error {
		if clock == nil {
			return errors.New("particle: nil clock")
		}
		c.clock = clock
		return nil
	}
}

// WithMaxStep caps the delta consumed by a single Update call.
//
// Parameters:
//   - step: the cap in seconds, must be positive
//
// Returns:
//   - ParticleSystemBuilderOption: a function that applies the cap to a particle system
func WithMaxStep(step float32) ParticleSystemBuilderOption {
	return func(c *config) error {
		if step <= 0 || !common.IsFinite(step) {
			return configErr("max_step", "must be positive, got %v", step)
		}
		c.maxStep = step
		return nil
	}
}
