package window

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"unicode"

	"github.com/Carmen-Shannon/oxy-particles/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gdamore/tcell/v2"
	"golang.org/x/image/draw"
)

// upperHalfBlock draws the top pixel of a cell in the foreground colour and the bottom one in the background.
const upperHalfBlock = '▀'

// Terminal presents software-rendered frames in a text terminal. Every cell shows two
// vertically stacked pixels, so the pixel size is columns x 2*(rows-1); the last row is a status line.
// It is a renderer.Surface for the software backend only.
type Terminal interface {
	renderer.Surface

	// Present scales img to the terminal and shows it.
	Present(img image.Image)

	// SetStatus replaces the text of the status line shown below the image.
	SetStatus(status string)

	// SetKeyDownCallback sets the callback for key presses. Letters are reported upper-case,
	// matching the common key codes.
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetResizeCallback sets the function called with the new pixel size when the terminal is resized.
	SetResizeCallback(callback func(width, height int))

	// IsRunning returns true until the user quits or Close is called.
	IsRunning() bool

	// ProcessMessages polls terminal events on the calling goroutine until the terminal closes.
	// Escape, Ctrl+C and q quit.
	ProcessMessages()

	// Close restores the terminal.
	Close() error
}

type terminal struct {
	mu *sync.Mutex

	screen  tcell.Screen
	scaler  draw.Scaler
	status  string
	running bool
	closed  bool

	onKeyDown func(keyCode uint32)
	onResize  func(width, height int)
}

var _ Terminal = &terminal{}

// TerminalBuilderOption is a functional option for configuring a terminal.
type TerminalBuilderOption func(t *terminal)

// WithScreen uses an existing tcell screen instead of opening the controlling terminal.
func WithScreen(screen tcell.Screen) TerminalBuilderOption {
	return func(t *terminal) {
		t.screen = screen
	}
}

// WithScaler sets the filter used to fit frames to the terminal. Defaults to draw.ApproxBiLinear.
func WithScaler(scaler draw.Scaler) TerminalBuilderOption {
	return func(t *terminal) {
		if scaler != nil {
			t.scaler = scaler
		}
	}
}

// NewTerminal initialises a terminal screen for frame previews.
//
// Parameters:
//   - options: functional options to configure the terminal
//
// Returns:
//   - Terminal: the initialised terminal
//   - error: an error if the screen cannot be opened
func NewTerminal(options ...TerminalBuilderOption) (Terminal, error) {
	t := &terminal{
		mu:      &sync.Mutex{},
		scaler:  draw.ApproxBiLinear,
		running: true,
	}
	for _, option := range options {
		option(t)
	}
	if t.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, err
		}
		t.screen = screen
	}
	if err := t.screen.Init(); err != nil {
		return nil, err
	}
	t.screen.HideCursor()
	t.screen.Clear()
	return t, nil
}

// pixelSize returns the frame size the screen can show.
func (t *terminal) pixelSize() (int, int) {
	cols, rows := t.screen.Size()
	return max(cols, 1), max(rows-1, 1) * 2
}

func (t *terminal) Width() int {
	w, _ := t.pixelSize()
	return w
}

func (t *terminal) Height() int {
	_, h := t.pixelSize()
	return h
}

func (t *terminal) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return nil
}

func (t *terminal) Present(img image.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || img == nil {
		return
	}

	width, height := t.pixelSize()
	fitted := image.NewRGBA(image.Rect(0, 0, width, height))
	t.scaler.Scale(fitted, fitted.Bounds(), img, img.Bounds(), draw.Src, nil)

	for y := 0; y < height/2; y++ {
		for x := 0; x < width; x++ {
			top := fitted.RGBAAt(x, 2*y)
			bottom := fitted.RGBAAt(x, 2*y+1)
			style := tcell.StyleDefault.Foreground(cellColor(top)).Background(cellColor(bottom))
			t.screen.SetContent(x, y, upperHalfBlock, nil, style)
		}
	}
	t.drawStatus(height / 2)
	t.screen.Show()
}

func (t *terminal) drawStatus(row int) {
	cols, _ := t.screen.Size()
	style := tcell.StyleDefault.Foreground(tcell.ColorSilver)
	runes := []rune(t.status)
	for x := 0; x < cols; x++ {
		r := ' '
		if x < len(runes) {
			r = runes[x]
		}
		t.screen.SetContent(x, row, r, nil, style)
	}
}

func cellColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

func (t *terminal) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

func (t *terminal) SetKeyDownCallback(callback func(keyCode uint32)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onKeyDown = callback
}

func (t *terminal) SetResizeCallback(callback func(width, height int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResize = callback
}

func (t *terminal) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *terminal) ProcessMessages() {
	for t.IsRunning() {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		t.handleEvent(ev)
	}
}

// handleEvent dispatches one tcell event to the registered callbacks.
func (t *terminal) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
			return
		}
		if ev.Key() != tcell.KeyRune {
			return
		}
		code := uint32(unicode.ToUpper(ev.Rune()))
		t.mu.Lock()
		cb := t.onKeyDown
		t.mu.Unlock()
		if cb != nil {
			cb(code)
		}
	case *tcell.EventResize:
		t.screen.Sync()
		t.mu.Lock()
		cb := t.onResize
		t.mu.Unlock()
		if cb != nil {
			cb(t.pixelSize())
		}
	}
}

func (t *terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("window: terminal already closed")
	}
	t.closed = true
	t.running = false
	t.screen.Fini()
	return nil
}
