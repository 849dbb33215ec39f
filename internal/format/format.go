package format

import (
	"strings"

	"github.com/dshills/mapstorm/internal/tilemap"
)

// Capability describes what a format can do.
type Capability int

// Capability bits.
const (
	// CanRead - The format can load maps.
	CanRead Capability = 1 << iota

	// CanWrite - The format can save maps.
	CanWrite
)

// ReadWrite is the combination of both capabilities.
const ReadWrite = CanRead | CanWrite

// Has reports whether all bits in want are present.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// String returns a string representation of the capability set.
func (c Capability) String() string {
	switch {
	case c.Has(ReadWrite):
		return "read/write"
	case c.Has(CanRead):
		return "read"
	case c.Has(CanWrite):
		return "write"
	default:
		return "none"
	}
}

// Options is a bitmask passed to Write.
type Options int

// Write options.
const (
	// WriteMinimized asks the format to favor compact output over
	// readability. Formats may ignore it.
	WriteMinimized Options = 1 << iota
)

// A MapFormat translates between map files and the tilemap model.
type MapFormat interface {
	// Name returns the format's short registration name (e.g. "json").
	Name() string

	// NameFilter returns a file-dialog style filter, e.g. "JSON map (*.json)".
	NameFilter() string

	// Capabilities returns what the format supports.
	Capabilities() Capability

	// SupportsFile reports whether the format recognizes the file path.
	SupportsFile(path string) bool

	// Read loads a map from the file.
	Read(path string) (*tilemap.Map, error)

	// Write saves a map to the file.
	Write(m *tilemap.Map, path string, opts Options) error

	// Error returns the message from the last failed Read or Write.
	Error() string
}

// ExtensionMatches reports whether path ends in "." + ext,
// case-insensitively. Shared by format implementations.
func ExtensionMatches(path, ext string) bool {
	if ext == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(path), "."+strings.ToLower(ext))
}
