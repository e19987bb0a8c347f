package demo

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/particle"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

//go:embed assets/default.yaml
var defaultConfig []byte

// Config describes a demo stage: the window, the camera framing and the emitters.
type Config struct {
	Window   WindowConfig    `yaml:"window"`
	Camera   CameraConfig    `yaml:"camera"`
	Emitters []EmitterConfig `yaml:"emitters"`
}

// WindowConfig holds the window and surface settings.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	VSync  bool   `yaml:"vsync"`
	MSAA   bool   `yaml:"msaa"`
}

// CameraConfig frames the stage with an orbit camera. Angles are in radians.
type CameraConfig struct {
	Target    mgl32.Vec3 `yaml:"target"`
	Radius    float32    `yaml:"radius"`
	Azimuth   float32    `yaml:"azimuth"`
	Elevation float32    `yaml:"elevation"`
	Fov       float32    `yaml:"fov"`
}

// NewCamera builds the orbit camera described by the configuration.
//
// Parameters:
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//
// Returns:
//   - camera.Camera: a camera with an orbit controller around Target
func (c CameraConfig) NewCamera(width, height int) camera.Camera {
	options := []camera.CameraBuilderOption{
		camera.WithController(camera.NewOrbitController(
			camera.WithTarget(c.Target),
			camera.WithRadius(c.Radius),
			camera.WithAzimuth(c.Azimuth),
			camera.WithElevation(c.Elevation),
		)),
	}
	if width > 0 && height > 0 {
		options = append(options, camera.WithAspect(float32(width)/float32(height)))
	}
	if c.Fov > 0 {
		options = append(options, camera.WithFov(c.Fov))
	}
	return camera.NewCamera(options...)
}

// EmitterConfig is one particle system of the stage. Options are decoded over the named preset,
// or over the default options when no preset is given.
type EmitterConfig struct {
	Label   string    `yaml:"label"`
	Preset  string    `yaml:"preset"`
	Options yaml.Node `yaml:"options"`
}

// ParticleOptions resolves the emitter's options.
//
// Returns:
//   - particle.Options: the preset (or default) options with the emitter's keys applied
//   - error: an error if the preset is unknown or the options are malformed or invalid
func (e EmitterConfig) ParticleOptions() (particle.Options, error) {
	o := particle.DefaultOptions()
	if e.Preset != "" {
		p, err := particle.Preset(e.Preset)
		if err != nil {
			return particle.Options{}, fmt.Errorf("emitter %q: %w", e.Label, err)
		}
		o = p
	}
	if !e.Options.IsZero() {
		if err := e.Options.Decode(&o); err != nil {
			return particle.Options{}, fmt.Errorf("emitter %q: %w", e.Label, err)
		}
	}
	if err := o.Validate(); err != nil {
		return particle.Options{}, fmt.Errorf("emitter %q: %w", e.Label, err)
	}
	return o, nil
}

// DefaultConfig returns the embedded demo stage.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(fmt.Sprintf("demo: embedded config: %v", err))
	}
	return cfg
}

// LoadConfig decodes a YAML document over the embedded defaults and validates the result.
// An empty document yields the defaults.
//
// Parameters:
//   - r: the YAML source
//
// Returns:
//   - Config: the merged configuration
//   - error: an error if the document is malformed or the result is invalid
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("demo: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a configuration file. An empty path yields the defaults.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return LoadConfig(bytes.NewReader(nil))
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("demo: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// LoadPresetsFile merges a preset file over the registered presets. An empty path is a no-op.
func LoadPresetsFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	defer f.Close()
	return particle.RegisterPresets(f)
}

// Validate checks the window size and every emitter. Emitter labels must be unique.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("demo: window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Camera.Radius <= 0 {
		return fmt.Errorf("demo: camera radius %v must be positive", c.Camera.Radius)
	}
	if len(c.Emitters) == 0 {
		return errors.New("demo: no emitters configured")
	}
	seen := make(map[string]bool, len(c.Emitters))
	var errs []error
	for i, e := range c.Emitters {
		if e.Label == "" {
			errs = append(errs, fmt.Errorf("demo: emitter %d has no label", i))
			continue
		}
		if seen[e.Label] {
			errs = append(errs, fmt.Errorf("demo: duplicate emitter label %q", e.Label))
		}
		seen[e.Label] = true
		if _, err := e.ParticleOptions(); err != nil {
			errs = append(errs, fmt.Errorf("demo: %w", err))
		}
	}
	return errors.Join(errs...)
}
