package camera

import "github.com/go-gl/mathgl/mgl32"

type CameraControllerOption func(*orbitController)

// WithRadius sets the initial orbit radius.
//
// Parameters:
//   - radius: distance from the target
//
// Returns:
//   - CameraControllerOption: a function that sets the orbit radius
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle in radians.
func WithAzimuth(azimuth float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle in radians.
func WithElevation(elevation float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.elevation = elevation
	}
}

// WithTarget sets the point the camera orbits around.
func WithTarget(target mgl32.Vec3) CameraControllerOption {
	return func(cc *orbitController) {
		cc.target = target
	}
}

// WithRadiusBounds sets the zoom limits.
func WithRadiusBounds(minRadius, maxRadius float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.minRadius = minRadius
		cc.maxRadius = maxRadius
	}
}

// WithMouseSensitivity sets the radians per pixel of mouse movement used by Orbit.
func WithMouseSensitivity(sensitivity float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.mouseSensitivity = sensitivity
	}
}

// WithZoomSpeed sets the radius change per scroll step.
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the world units per pixel used by Pan.
func WithPanSpeed(speed float32) CameraControllerOption {
	return func(cc *orbitController) {
		cc.panSpeed = speed
	}
}
