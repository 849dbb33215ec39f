package extension

import "errors"

// Extension system errors.
var (
	// ErrExtensionNotFound is returned when an extension cannot be located.
	ErrExtensionNotFound = errors.New("extension not found")

	// ErrNoEntryPoint is returned when an extension has no valid entry point.
	ErrNoEntryPoint = errors.New("extension has no entry point (init.lua or extension.lua)")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrAlreadyLoaded is returned when loading an already loaded extension.
	ErrAlreadyLoaded = errors.New("extension is already loaded")

	// ErrNotLoaded is returned when using an unloaded extension.
	ErrNotLoaded = errors.New("extension is not loaded")
)

// Manifest validation errors.
var (
	ErrMissingName      = errors.New("manifest: name is required")
	ErrInvalidName      = errors.New("manifest: name must be lowercase alphanumeric with hyphens")
	ErrMissingVersion   = errors.New("manifest: version is required")
	ErrInvalidVersion   = errors.New("manifest: version must be valid semver")
	ErrInvalidMain      = errors.New("manifest: main must be a .lua file")
	ErrMissingFormat    = errors.New("manifest: format name is required")
	ErrMissingExtension = errors.New("manifest: format extension is required")
)
