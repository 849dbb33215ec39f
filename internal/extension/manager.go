package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/mapstorm/internal/format"
)

// Manager manages the lifecycle of all extensions. It handles discovery,
// loading, unloading, and event dispatching.
type Manager struct {
	mu sync.RWMutex

	// Loader for extension discovery
	loader *Loader

	// Loaded extensions by name
	hosts map[string]*Host

	// Extension load order (for deterministic iteration)
	loadOrder []string

	// Event handlers (protected by mu)
	eventHandlers []EventHandler

	// Formats register into this shared registry.
	registry *format.Registry

	// Configuration
	config ManagerConfig

	logger *slog.Logger
}

// ManagerConfig configures the extension manager.
type ManagerConfig struct {
	// SearchPaths are directories to search for extensions.
	SearchPaths []string

	// ExecutionTimeout bounds each script call.
	ExecutionTimeout time.Duration

	// InstructionLimit bounds each script call's Lua instruction count.
	// Zero means the host default.
	InstructionLimit int64

	// Logger for lifecycle messages. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultManagerConfig returns sensible default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SearchPaths: DefaultSearchPaths(),
	}
}

// EventHandler handles extension manager events.
// Handlers must be non-blocking and should not call back into the Manager
// to avoid deadlocks. Panics in handlers are recovered.
type EventHandler func(event ManagerEvent)

// ManagerEvent represents an extension manager event.
type ManagerEvent struct {
	Type      ManagerEventType
	Extension string
	Error     error
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

const (
	// EventExtensionLoaded is emitted when an extension is loaded.
	EventExtensionLoaded ManagerEventType = iota
	// EventExtensionUnloaded is emitted when an extension is unloaded.
	EventExtensionUnloaded
	// EventExtensionReloaded is emitted when an extension is reloaded.
	EventExtensionReloaded
	// EventExtensionError is emitted when an extension encounters an error.
	EventExtensionError
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventExtensionLoaded:
		return "loaded"
	case EventExtensionUnloaded:
		return "unloaded"
	case EventExtensionReloaded:
		return "reloaded"
	case EventExtensionError:
		return "error"
	default:
		return "unknown"
	}
}

// NewManager creates an extension manager. Formats registered by loaded
// extensions go into the given registry.
func NewManager(registry *format.Registry, config ManagerConfig) *Manager {
	if len(config.SearchPaths) == 0 {
		config.SearchPaths = DefaultSearchPaths()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		loader:    NewLoader(WithPaths(config.SearchPaths...)),
		hosts:     make(map[string]*Host),
		loadOrder: make([]string, 0),
		registry:  registry,
		config:    config,
		logger:    logger,
	}
}

// Registry returns the format registry extensions register into.
func (m *Manager) Registry() *format.Registry {
	return m.registry
}

// Discover searches for available extensions.
func (m *Manager) Discover() ([]*Info, error) {
	return m.loader.Discover()
}

// Load loads an extension by name.
// If the extension is already loaded, returns ErrAlreadyLoaded.
func (m *Manager) Load(ctx context.Context, name string) (*Host, error) {
	// Quick check under lock
	m.mu.Lock()
	if _, exists := m.hosts[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("extension %q: %w", name, ErrAlreadyLoaded)
	}
	m.mu.Unlock()

	info, err := m.loader.Find(name)
	if err != nil {
		return nil, err
	}

	host, err := m.newHost(info.Manifest)
	if err != nil {
		return nil, err
	}

	// Running the script is potentially slow, keep it outside the lock.
	if err := host.Load(ctx); err != nil {
		m.emitEvent(ManagerEvent{Type: EventExtensionError, Extension: name, Error: err})
		return nil, fmt.Errorf("failed to load extension %q: %w", name, err)
	}

	m.mu.Lock()
	// Double-check - another goroutine might have loaded it
	if _, exists := m.hosts[name]; exists {
		m.mu.Unlock()
		host.Unload(ctx)
		return nil, fmt.Errorf("extension %q: %w", name, ErrAlreadyLoaded)
	}
	m.hosts[name] = host
	m.loadOrder = append(m.loadOrder, name)
	m.mu.Unlock()

	m.emitEvent(ManagerEvent{Type: EventExtensionLoaded, Extension: name})
	return host, nil
}

// newHost builds a host with the manager's configured options.
func (m *Manager) newHost(manifest *Manifest) (*Host, error) {
	opts := []HostOption{WithHostLogger(m.logger)}
	if m.config.ExecutionTimeout > 0 {
		opts = append(opts, WithHostExecutionTimeout(m.config.ExecutionTimeout))
	}
	if m.config.InstructionLimit > 0 {
		opts = append(opts, WithHostInstructionLimit(m.config.InstructionLimit))
	}
	return NewHost(manifest, m.registry, opts...)
}

// LoadAll loads all discovered extensions.
func (m *Manager) LoadAll(ctx context.Context) error {
	infos, err := m.loader.Discover()
	if err != nil {
		return err
	}

	var loadErrors []error
	for _, info := range infos {
		if info.Error != nil {
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", info.Name, info.Error))
			continue
		}
		if _, err := m.Load(ctx, info.Name); err != nil {
			loadErrors = append(loadErrors, fmt.Errorf("%s: %w", info.Name, err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d extensions: %w", len(loadErrors), errors.Join(loadErrors...))
	}
	return nil
}

// Unload unloads an extension by name, removing its formats from the
// registry.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	host, exists := m.hosts[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("extension %q: %w", name, ErrExtensionNotFound)
	}
	delete(m.hosts, name)
	m.removeFromLoadOrder(name)
	m.mu.Unlock()

	if err := host.Unload(ctx); err != nil {
		return fmt.Errorf("failed to unload extension %q: %w", name, err)
	}

	m.emitEvent(ManagerEvent{Type: EventExtensionUnloaded, Extension: name})
	return nil
}

// UnloadAll unloads all extensions in reverse load order.
func (m *Manager) UnloadAll(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, len(m.loadOrder))
	for i, name := range m.loadOrder {
		names[len(m.loadOrder)-1-i] = name
	}
	m.mu.RUnlock()

	var unloadErrors []error
	for _, name := range names {
		if err := m.Unload(ctx, name); err != nil {
			unloadErrors = append(unloadErrors, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(unloadErrors) > 0 {
		return fmt.Errorf("failed to unload %d extensions: %w", len(unloadErrors), errors.Join(unloadErrors...))
	}
	return nil
}

// Reload reloads an extension (unload + load), picking up file changes.
func (m *Manager) Reload(ctx context.Context, name string) error {
	m.mu.RLock()
	_, exists := m.hosts[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("extension %q: %w", name, ErrExtensionNotFound)
	}

	if err := m.Unload(ctx, name); err != nil {
		return fmt.Errorf("reload unload failed: %w", err)
	}

	// Refresh discovery to pick up manifest changes.
	if _, err := m.loader.Refresh(); err != nil {
		return fmt.Errorf("reload refresh failed: %w", err)
	}

	if _, err := m.Load(ctx, name); err != nil {
		return fmt.Errorf("reload load failed: %w", err)
	}

	m.emitEvent(ManagerEvent{Type: EventExtensionReloaded, Extension: name})
	return nil
}

// Get returns a loaded extension by name.
func (m *Manager) Get(name string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	host, exists := m.hosts[name]
	return host, exists
}

// List returns all loaded extensions in load order.
func (m *Manager) List() []*Host {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Host, 0, len(m.loadOrder))
	for _, name := range m.loadOrder {
		if host, exists := m.hosts[name]; exists {
			result = append(result, host)
		}
	}
	return result
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.eventHandlers = append(m.eventHandlers, handler)
	index := len(m.eventHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.eventHandlers) {
			m.eventHandlers[index] = nil
		}
	}
}

// Count returns the number of loaded extensions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hosts)
}

// HasErrors returns true if any extension is in an error state.
func (m *Manager) HasErrors() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, host := range m.hosts {
		if host.State() == StateError {
			return true
		}
	}
	return false
}

// Errors returns all extensions in error state with their errors.
func (m *Manager) Errors() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]error)
	for name, host := range m.hosts {
		if host.State() == StateError && host.Error() != nil {
			errs[name] = host.Error()
		}
	}
	return errs
}

// Loader returns the underlying loader for advanced operations.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// emitEvent sends an event to all handlers.
// Handlers are called outside any locks and panics are recovered.
func (m *Manager) emitEvent(event ManagerEvent) {
	m.mu.RLock()
	handlers := make([]EventHandler, len(m.eventHandlers))
	copy(handlers, m.eventHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				recover() // Ignore panics from handlers
			}()
			handler(event)
		}()
	}
}

// removeFromLoadOrder removes a name from the load order slice.
// Must be called with mu held.
func (m *Manager) removeFromLoadOrder(name string) {
	for i, n := range m.loadOrder {
		if n == name {
			m.loadOrder = append(m.loadOrder[:i], m.loadOrder[i+1:]...)
			return
		}
	}
}
