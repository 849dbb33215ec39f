package format

import "errors"

// Registry errors.
var (
	// ErrDuplicateName is returned when a format name is already taken.
	ErrDuplicateName = errors.New("format name already registered")

	// ErrNotFound is returned when no format matches a name or path.
	ErrNotFound = errors.New("no format found")

	// ErrNotReadable is returned when a matching format cannot read.
	ErrNotReadable = errors.New("format cannot read")

	// ErrNotWritable is returned when a matching format cannot write.
	ErrNotWritable = errors.New("format cannot write")

	// ErrUnknownToken is returned when unregistering an unknown token.
	ErrUnknownToken = errors.New("unknown registration token")
)
