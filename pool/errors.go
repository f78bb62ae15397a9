package pool

import (
	"errors"
	"fmt"
)

// Errors returned by pool operations.
var (
	ErrCapacity      = errors.New("capacity out of range")
	ErrMalformedTree = errors.New("malformed tree encoding")
)

// Contract violations. Operations panic with an error wrapping one of these;
// they indicate a lifetime or bookkeeping bug in the caller.
var (
	ErrUndefinedReference = errors.New("undefined reference")
	ErrStaleReference     = errors.New("stale reference")
	ErrForeignPool        = errors.New("reference belongs to another pool")
	ErrChildCountMismatch = errors.New("children count mismatch")
	ErrIndexOutOfRange    = errors.New("child index out of range")
	ErrNotAChild          = errors.New("node is not a child of the receiver")
	ErrCycle              = errors.New("operation would make a node its own descendant")
	ErrRetainOverflow     = errors.New("retain count overflow")
)

func violation(err error, format string, args ...any) {
	panic(fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...)))
}
