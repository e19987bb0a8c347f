package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-particles/common"
	"github.com/go-gl/mathgl/mgl32"
)

// depthRemap converts OpenGL style clip depth [-1, 1] to the WebGPU [0, 1] range.
var depthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

type cameraImpl struct {
	mu *sync.Mutex

	up mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	view           mgl32.Mat4
	projection     mgl32.Mat4
	viewProjection mgl32.Mat4

	controller CameraController
}

// Camera holds perspective settings and computes view/projection matrices
// from an attached CameraController each frame via Update().
type Camera interface {
	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// ViewProjectionMatrix returns the combined projection * view matrix with WebGPU depth.
	ViewProjectionMatrix() mgl32.Mat4

	// Eye returns the world-space camera position, or the origin without a controller.
	Eye() mgl32.Vec3

	// ViewState packages the current matrices for a viewport of the given size.
	// The aspect ratio is updated from the viewport first.
	//
	// Parameters:
	//   - width: viewport width in pixels
	//   - height: viewport height in pixels
	//
	// Returns:
	//   - common.ViewState: the per-frame camera state handed to the renderer
	ViewState(width, height int) common.ViewState

	// Controller returns the attached CameraController, or nil.
	Controller() CameraController

	// SetController attaches a CameraController to the camera.
	SetController(ctrl CameraController)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	SetAspect(aspect float32)

	// Update reads position/target from the controller and recomputes matrices.
	// Does nothing if no controller is attached.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:             &sync.Mutex{},
		up:             mgl32.Vec3{0, 1, 0},
		fov:            45.0 * (math.Pi / 180.0),
		aspect:         1.0,
		near:           0.1,
		far:            500.0,
		view:           mgl32.Ident4(),
		projection:     mgl32.Ident4(),
		viewProjection: mgl32.Ident4(),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjection
}

func (c *cameraImpl) Eye() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return mgl32.Vec3{}
	}
	return c.controller.Position()
}

func (c *cameraImpl) ViewState(width, height int) common.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width > 0 && height > 0 {
		c.aspect = float32(width) / float32(height)
	}
	c.updateMatrices()
	var eye mgl32.Vec3
	if c.controller != nil {
		eye = c.controller.Position()
	}
	return common.ViewState{
		ViewProj: c.viewProjection,
		Eye:      eye,
		Width:    width,
		Height:   height,
	}
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and view-projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.projection = depthRemap.Mul4(mgl32.Perspective(c.fov, c.aspect, c.near, c.far))
	if c.controller != nil {
		c.view = mgl32.LookAtV(c.controller.Position(), c.controller.Target(), c.up)
	}
	c.viewProjection = c.projection.Mul4(c.view)
}
