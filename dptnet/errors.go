package dptnet

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig reports a configuration the network cannot be built
// from. Wrapped errors carry the specific violation.
var ErrInvalidConfig = errors.New("dptnet: invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
