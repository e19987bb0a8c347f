package scene

import "log/slog"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene) error

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) error {
		s.active = active
		return nil
	}
}

// WithDrawables adds initial drawables to the scene in the given order.
//
// Parameters:
//   - drawables: the drawables to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithDrawables(drawables ...Drawable) SceneBuilderOption {
	return func(s *scene) error {
		for _, d := range drawables {
			if err := s.add(d); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithSimulators registers initial simulators for the compute phase.
func WithSimulators(sims ...Simulator) SceneBuilderOption {
	return func(s *scene) error {
		for _, sim := range sims {
			if sim != nil {
				s.simulators = append(s.simulators, sim)
			}
		}
		return nil
	}
}

// WithLogger sets the logger used for scene diagnostics.
func WithLogger(l *slog.Logger) SceneBuilderOption {
	return func(s *scene) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}
