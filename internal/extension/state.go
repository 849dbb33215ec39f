package extension

// State represents the lifecycle state of an extension.
type State int

// Extension states.
const (
	// StateUnloaded - extension is not loaded.
	StateUnloaded State = iota

	// StateLoading - extension script is being executed.
	StateLoading

	// StateLoaded - extension script ran and its formats are registered.
	StateLoaded

	// StateError - extension failed to load.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsUsable returns true if the extension's formats are available.
func (s State) IsUsable() bool {
	return s == StateLoaded
}
