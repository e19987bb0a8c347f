package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyR     = 82 // R key (ASCII), reseeds the emitters in the demos
	KeyP     = 80 // P key (ASCII), moves the preset focus to the next emitter
	KeySpace = 32 // Spacebar (ASCII), pauses the simulation

	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
)

// PresetKeys maps the number row to preset slots in the demos.
var PresetKeys = map[int]int{
	Key1: 0,
	Key2: 1,
	Key3: 2,
	Key4: 3,
}
