package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Compile translates the shader's pre-processed WGSL into SPIR-V with the pure Go naga
// compiler. It lets backends without a GPU driver reject malformed programs at pipeline
// registration, the way a driver would at module creation.
//
// Parameters:
//   - s: the shader to compile
//
// Returns:
//   - []byte: the SPIR-V module
//   - error: the compiler diagnostic, or an error if the output is not a SPIR-V module
func Compile(s Shader) ([]byte, error) {
	spirv, err := naga.Compile(s.Source())
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", s.Key(), err)
	}
	if len(spirv) < 4 || binary.LittleEndian.Uint32(spirv) != spirvMagic {
		return nil, fmt.Errorf("shader %s: compiler output is not SPIR-V", s.Key())
	}
	return spirv, nil
}
