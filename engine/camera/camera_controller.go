package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController positions the camera. The orbit implementation keeps the camera on a
// sphere around a target and translates both along the camera's local axes when panning.
type CameraController interface {
	// Position returns the world-space camera position.
	Position() mgl32.Vec3

	// Target returns the world-space point the camera looks at.
	Target() mgl32.Vec3

	// SetTarget moves the orbit centre and recomputes the position.
	SetTarget(target mgl32.Vec3)

	// Zoom moves the camera toward (positive delta) or away from the target, clamped to the radius bounds.
	Zoom(delta float32)

	// Orbit rotates the camera around the target.
	//
	// Parameters:
	//   - dAzimuth: change of the horizontal angle, scaled by the mouse sensitivity
	//   - dElevation: change of the vertical angle, scaled by the mouse sensitivity and clamped to the elevation bounds
	Orbit(dAzimuth, dElevation float32)

	// Pan translates both camera and target along the camera's right and up axes.
	Pan(right, up float32)

	// Radius returns the distance between camera and target.
	Radius() float32

	// Azimuth returns the horizontal orbit angle in radians.
	Azimuth() float32

	// Elevation returns the vertical orbit angle in radians.
	Elevation() float32
}
