package particle

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
)

// StateInfo is a snapshot of the double buffer bookkeeping.
type StateInfo struct {
	// Current is the index (0 or 1) of the grid the sprite pass samples.
	Current int
	// Generations counts the update passes that wrote each grid, warm passes included.
	Generations [2]uint64
	// Frames counts the advanced frames since Attach, warm passes excluded.
	Frames uint64
}

// stateStore owns the two particle grids of one system and the index of the current one.
// The update pass always reads current and writes the other grid, then swap flips the index.
type stateStore struct {
	grids       [2]renderer.GridTarget
	current     int
	generations [2]uint64
	frames      uint64
}

// allocateStateStore creates two equal grids. Nothing is left allocated on failure.
func allocateStateStore(r renderer.Renderer, label string, size int) (*stateStore, error) {
	if size <= 0 {
		return nil, configErr("size", "must be positive, got %d", size)
	}
	s := &stateStore{}
	for i := range s.grids {
		g, err := r.CreateGridTarget(fmt.Sprintf("%s/grid-%c", label, 'a'+i), size)
		if err != nil {
			s.release(r)
			return nil, &ResourceError{Op: "create grid", Err: err}
		}
		s.grids[i] = g
	}
	return s, nil
}

// seed uploads the same staging data to both grids.
func (s *stateStore) seed(r renderer.Renderer, data common.GridStagingData) error {
	for _, g := range s.grids {
		if err := r.WriteGridTarget(g, data); err != nil {
			return &ResourceError{Op: "seed grid", Err: err}
		}
	}
	return nil
}

func (s *stateStore) currentGrid() renderer.GridTarget {
	return s.grids[s.current]
}

func (s *stateStore) backGrid() renderer.GridTarget {
	return s.grids[1-s.current]
}

func (s *stateStore) swap() {
	s.current = 1 - s.current
}

// advance runs one update pass from the current grid into the back grid and swaps.
// The index only flips once the dispatch succeeded.
func (s *stateStore) advance(r renderer.Renderer, key string, uniforms common.Uniform) error {
	back := 1 - s.current
	err := r.DispatchGrid(key, renderer.GridPass{
		Uniforms: uniforms,
		Source:   s.currentGrid(),
		Target:   s.grids[back],
	})
	if err != nil {
		return err
	}
	s.generations[back]++
	s.swap()
	return nil
}

func (s *stateStore) info() StateInfo {
	return StateInfo{Current: s.current, Generations: s.generations, Frames: s.frames}
}

func (s *stateStore) release(r renderer.Renderer) {
	for i, g := range s.grids {
		if g != nil {
			r.ReleaseGridTarget(g)
			s.grids[i] = nil
		}
	}
}
