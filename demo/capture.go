package demo

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
)

// Capture writes every Nth software frame as a numbered PNG file.
type Capture struct {
	mu *sync.Mutex

	dir     string
	every   int
	frames  int
	written []string
	err     error
}

// NewCapture prepares the output directory.
//
// Parameters:
//   - dir: the directory the PNG files are written to, created if missing
//   - every: write one frame out of every; values < 1 write every frame
//
// Returns:
//   - *Capture: the frame writer
//   - error: an error if the directory cannot be created
func NewCapture(dir string, every int) (*Capture, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("demo: capture directory: %w", err)
	}
	return &Capture{
		mu:    &sync.Mutex{},
		dir:   dir,
		every: max(every, 1),
	}, nil
}

// Present is a software presenter. Only the first write error is kept; later frames are skipped.
func (c *Capture) Present(frame renderer.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.frames
	c.frames++
	if c.err != nil || frame.Image == nil || n%c.every != 0 {
		return
	}

	path := filepath.Join(c.dir, fmt.Sprintf("frame_%05d.png", n))
	f, err := os.Create(path)
	if err != nil {
		c.err = fmt.Errorf("demo: %w", err)
		return
	}
	if err := png.Encode(f, frame.Image); err != nil {
		f.Close()
		c.err = fmt.Errorf("demo: encode %s: %w", path, err)
		return
	}
	if err := f.Close(); err != nil {
		c.err = fmt.Errorf("demo: %w", err)
		return
	}
	c.written = append(c.written, path)
	common.Logger().Debug("frame captured", "path", path, "sprites", len(frame.Sprites))
}

// Written returns the paths of the files written so far.
func (c *Capture) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	copy(out, c.written)
	return out
}

// Err returns the first write error.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
