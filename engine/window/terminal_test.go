package window

import (
	"image"
	"image/color"
	"testing"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/image/draw"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func newSimulatedTerminal(t *testing.T, cols, rows int) (Terminal, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	term, err := NewTerminal(WithScreen(screen), WithScaler(draw.NearestNeighbor))
	if err != nil {
		t.Fatalf("NewTerminal: %v", err)
	}
	screen.SetSize(cols, rows)
	t.Cleanup(func() { term.Close() })
	return term, screen
}

func TestTerminalPixelSize(t *testing.T) {
	term, _ := newSimulatedTerminal(t, 40, 11)
	if term.Width() != 40 || term.Height() != 20 {
		t.Errorf("pixel size = %dx%d, want 40x20", term.Width(), term.Height())
	}
	if term.SurfaceDescriptor() != nil {
		t.Error("terminal offered a GPU surface")
	}
}

func TestTerminalPresentHalfBlocks(t *testing.T) {
	term, screen := newSimulatedTerminal(t, 4, 3)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		c := red
		if y%2 == 1 {
			c = blue
		}
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	term.SetStatus("ok")
	term.Present(img)

	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			mainc, _, style, _ := screen.GetContent(x, y)
			if mainc != upperHalfBlock {
				t.Fatalf("cell (%d,%d) = %q, want half block", x, y, mainc)
			}
			fg, bg, _ := style.Decompose()
			if r, _, b := fg.RGB(); r != 255 || b != 0 {
				t.Errorf("cell (%d,%d) foreground = %v, want red", x, y, fg)
			}
			if r, _, b := bg.RGB(); r != 0 || b != 255 {
				t.Errorf("cell (%d,%d) background = %v, want blue", x, y, bg)
			}
		}
	}
	if mainc, _, _, _ := screen.GetContent(0, 2); mainc != 'o' {
		t.Errorf("status line starts with %q, want 'o'", mainc)
	}
}

func TestTerminalKeys(t *testing.T) {
	term, _ := newSimulatedTerminal(t, 10, 5)
	impl := term.(*terminal)

	var keys []uint32
	term.SetKeyDownCallback(func(code uint32) { keys = append(keys, code) })

	impl.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone))
	impl.handleEvent(tcell.NewEventKey(tcell.KeyRune, '2', tcell.ModNone))
	impl.handleEvent(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone))
	if len(keys) != 2 || keys[0] != 'R' || keys[1] != '2' {
		t.Errorf("keys = %v, want [R 2]", keys)
	}
	if !term.IsRunning() {
		t.Fatal("terminal stopped early")
	}

	impl.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	if term.IsRunning() {
		t.Error("q did not quit")
	}
}

func TestTerminalCloseTwice(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	term, err := NewTerminal(WithScreen(screen))
	if err != nil {
		t.Fatalf("NewTerminal: %v", err)
	}
	if err := term.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := term.Close(); err == nil {
		t.Error("second Close succeeded")
	}
	term.Present(image.NewRGBA(image.Rect(0, 0, 1, 1)))
}
