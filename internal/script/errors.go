package script

import "errors"

// Runtime errors.
var (
	// ErrRuntimeClosed is returned when operating on a closed runtime.
	ErrRuntimeClosed = errors.New("script runtime is closed")

	// ErrNotCallable is returned when a value expected to be a function
	// is something else.
	ErrNotCallable = errors.New("value is not callable")

	// ErrInstructionLimit is returned when a script exceeds its
	// instruction budget.
	ErrInstructionLimit = errors.New("script instruction limit exceeded")

	// ErrExecutionTimeout is returned when a script call exceeds its
	// execution timeout.
	ErrExecutionTimeout = errors.New("script execution timed out")
)
