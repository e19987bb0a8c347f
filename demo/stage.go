package demo

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/particle"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/Carmen-Shannon/oxy-particles/engine/scene"
)

// PresetCycle is the order in which the number keys select presets.
var PresetCycle = []string{particle.PresetFire, particle.PresetWater, particle.PresetMagic, particle.PresetSpark}

// Stage owns the particle systems of a demo scene. All methods that rebuild systems must run
// between frames, on the goroutine that renders.
type Stage struct {
	mu *sync.Mutex

	r       renderer.Renderer
	s       scene.Scene
	systems []particle.ParticleSystem
	focus   int

	logger *slog.Logger
}

// NewStage builds, attaches and adds every configured emitter to the scene. Emitters built
// before a failure are detached again.
//
// Parameters:
//   - s: the scene to draw in; its renderer backs the grids
//   - emitters: the emitter configurations, in draw order
//   - options: extra options applied to every emitter after its configured options
//
// Returns:
//   - *Stage: the populated stage
//   - error: an error if any emitter is invalid or cannot be attached
func NewStage(s scene.Scene, emitters []EmitterConfig, options ...particle.ParticleSystemBuilderOption) (*Stage, error) {
	if s == nil || s.Renderer() == nil {
		return nil, errors.New("demo: stage requires a scene with a renderer")
	}
	st := &Stage{
		mu:     &sync.Mutex{},
		r:      s.Renderer(),
		s:      s,
		logger: common.Logger(),
	}
	for _, e := range emitters {
		o, err := e.ParticleOptions()
		if err != nil {
			st.Release()
			return nil, err
		}
		opts := append([]particle.ParticleSystemBuilderOption{particle.WithOptions(o), particle.WithLabel(e.Label)}, options...)
		ps, err := particle.NewParticleSystem(opts...)
		if err != nil {
			st.Release()
			return nil, fmt.Errorf("emitter %q: %w", e.Label, err)
		}
		if err := st.place(ps); err != nil {
			ps.Detach(s)
			st.Release()
			return nil, fmt.Errorf("emitter %q: %w", e.Label, err)
		}
		st.systems = append(st.systems, ps)
	}
	return st, nil
}

// place attaches a system to the stage renderer and scene.
func (st *Stage) place(ps particle.ParticleSystem) error {
	if err := ps.Attach(st.r); err != nil {
		return err
	}
	return ps.AttachDrawable(st.s)
}

// Systems returns the particle systems in draw order.
func (st *Stage) Systems() []particle.ParticleSystem {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]particle.ParticleSystem, len(st.systems))
	copy(out, st.systems)
	return out
}

// Focused returns the system preset keys apply to, or nil on an empty stage.
func (st *Stage) Focused() particle.ParticleSystem {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.systems) == 0 {
		return nil
	}
	return st.systems[st.focus]
}

// CycleFocus moves the focus to the next system and returns its label.
func (st *Stage) CycleFocus() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.systems) == 0 {
		return ""
	}
	st.focus = (st.focus + 1) % len(st.systems)
	return st.systems[st.focus].Label()
}

// Reseed rebuilds every system from the next seed, restarting the simulation from a fresh spawn.
func (st *Stage) Reseed() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	var errs []error
	for _, ps := range st.systems {
		next := ps.Options().Seed + 1
		ps.Detach(st.s)
		if err := ps.Reconfigure(particle.WithSeed(next)); err != nil {
			errs = append(errs, err)
		}
		if err := st.place(ps); err != nil {
			errs = append(errs, fmt.Errorf("emitter %q: %w", ps.Label(), err))
		}
	}
	st.logger.Info("stage reseeded", "systems", len(st.systems))
	return errors.Join(errs...)
}

// ApplyPreset switches the focused system to a preset. The system keeps its placement
// (spawn box, target, end point, offset) and seed. On failure the previous options are restored.
//
// Parameters:
//   - name: the preset name
//
// Returns:
//   - error: an error if the preset is unknown or the rebuilt system cannot be attached
func (st *Stage) ApplyPreset(name string) error {
	p, err := particle.Preset(name)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.systems) == 0 {
		return nil
	}
	ps := st.systems[st.focus]
	prev := ps.Options()
	p.StartPos = prev.StartPos
	p.StartArea = prev.StartArea
	p.TargetPos = prev.TargetPos
	p.EndPos = prev.EndPos
	p.PositionOffset = prev.PositionOffset
	p.Seed = prev.Seed

	ps.Detach(st.s)
	if err := ps.Reconfigure(particle.WithOptions(p)); err != nil {
		return errors.Join(err, st.place(ps))
	}
	if err := st.place(ps); err != nil {
		ps.Detach(st.s)
		if rerr := ps.Reconfigure(particle.WithOptions(prev)); rerr != nil {
			return errors.Join(err, rerr)
		}
		return errors.Join(err, st.place(ps))
	}
	st.logger.Info("preset applied", "system", ps.Label(), "preset", name)
	return nil
}

// ParticleCount returns the number of simulated particles on the stage.
func (st *Stage) ParticleCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for _, ps := range st.systems {
		n += ps.Drawable().PointCount()
	}
	return n
}

// Release detaches every system from the scene and frees its GPU resources.
func (st *Stage) Release() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, ps := range st.systems {
		if err := ps.Detach(st.s); err != nil {
			st.logger.Warn("detach failed", "system", ps.Label(), "err", err)
		}
	}
	st.systems = nil
	st.focus = 0
}
