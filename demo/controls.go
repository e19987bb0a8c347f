package demo

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/Carmen-Shannon/oxy-particles/engine/camera"
	"github.com/Carmen-Shannon/oxy-particles/engine/window"
)

// Pauser toggles the compute phase of the engine.
type Pauser interface {
	SetPaused(paused bool)
	Paused() bool
}

// Controls maps window input to the camera and the stage.
// Camera input applies immediately. Stage changes (reseed, preset switches) are queued and run
// by Apply, which the render loop calls between frames.
type Controls struct {
	mu *sync.Mutex

	cam    camera.Camera
	stage  *Stage
	pauser Pauser

	pending []func() error

	dragging bool
	button   window.MouseButton
	lastX    int32
	lastY    int32
}

// NewControls creates the input mapping.
//
// Parameters:
//   - cam: the camera to orbit, pan and zoom; may be nil for fixed views
//   - stage: the stage reseeded and restyled by key presses
//   - pauser: the engine (or anything else) paused by Space
//
// Returns:
//   - *Controls: the input mapping
func NewControls(cam camera.Camera, stage *Stage, pauser Pauser) *Controls {
	return &Controls{
		mu:     &sync.Mutex{},
		cam:    cam,
		stage:  stage,
		pauser: pauser,
	}
}

// Bind installs the controls as the window's input callbacks.
func (c *Controls) Bind(w window.Window) {
	w.SetKeyDownCallback(c.KeyDown)
	w.SetScrollCallback(c.Scroll)
	w.SetMouseButtonCallback(c.MouseButton)
	w.SetMouseMoveCallback(c.MouseMove)
}

// KeyDown handles a key press. Space toggles pause, R reseeds, P cycles the focused emitter and
// 1-4 apply a preset to it.
func (c *Controls) KeyDown(keyCode uint32) {
	key := int(keyCode)
	switch key {
	case common.KeySpace:
		if c.pauser != nil {
			c.pauser.SetPaused(!c.pauser.Paused())
		}
	case common.KeyR:
		c.queue(c.stage.Reseed)
	case common.KeyP:
		c.queue(func() error {
			c.stage.CycleFocus()
			return nil
		})
	default:
		if slot, ok := common.PresetKeys[key]; ok && slot < len(PresetCycle) {
			name := PresetCycle[slot]
			c.queue(func() error { return c.stage.ApplyPreset(name) })
		}
	}
}

func (c *Controls) queue(action func() error) {
	if c.stage == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, action)
}

// Apply runs the queued stage changes in order.
//
// Returns:
//   - error: the joined errors of every failed change
func (c *Controls) Apply() error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	var errs []error
	for _, action := range pending {
		if err := action(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Scroll zooms the camera.
func (c *Controls) Scroll(delta float32) {
	if ctrl := c.controller(); ctrl != nil {
		ctrl.Zoom(delta)
	}
}

// MouseButton starts or ends a drag. Left drags orbit, right and middle drags pan.
func (c *Controls) MouseButton(button window.MouseButton, pressed bool, x, y int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pressed {
		c.dragging = true
		c.button = button
		c.lastX, c.lastY = x, y
		return
	}
	if button == c.button {
		c.dragging = false
	}
}

// MouseMove applies the cursor delta of an active drag.
func (c *Controls) MouseMove(x, y int32) {
	c.mu.Lock()
	if !c.dragging {
		c.mu.Unlock()
		return
	}
	dx, dy := float32(x-c.lastX), float32(y-c.lastY)
	c.lastX, c.lastY = x, y
	button := c.button
	c.mu.Unlock()

	ctrl := c.controller()
	if ctrl == nil {
		return
	}
	if button == window.MouseButtonLeft {
		ctrl.Orbit(-dx, dy)
		return
	}
	ctrl.Pan(-dx, dy)
}

func (c *Controls) controller() camera.CameraController {
	if c.cam == nil {
		return nil
	}
	return c.cam.Controller()
}
