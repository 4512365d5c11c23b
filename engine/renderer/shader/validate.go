package shader

import (
	"fmt"

	"github.com/gogpu/naga"
)

// Validate compiles WGSL source to SPIR-V and discards the result. Any compiler
// diagnostic is returned wrapped in ErrValidation.
//
// Parameters:
//   - source: the processed WGSL source
//
// Returns:
//   - error: nil if the source compiles
func Validate(source string) error {
	if _, err := naga.Compile(source); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
