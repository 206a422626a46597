package practice

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks requests rejected before any storage access, so
// callers can tell malformed input apart from a broken backend.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
