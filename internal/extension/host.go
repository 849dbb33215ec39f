package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mapstorm/internal/format"
	"github.com/dshills/mapstorm/internal/format/scripted"
	"github.com/dshills/mapstorm/internal/script"
)

// APIModule is the name of the Lua module exposed to extension scripts.
const APIModule = "mapstorm"

// Host manages a single extension's Lua runtime and lifecycle.
type Host struct {
	mu sync.RWMutex

	// Identity
	name     string
	manifest *Manifest

	// Formats register into this shared registry.
	registry *format.Registry

	// Lua runtime, nil while unloaded.
	runtime *script.Runtime

	// State
	extState State
	err      error

	// Formats registered by the running script. Guarded by fmu, not mu:
	// registration happens from inside Lua while Load holds mu.
	fmu     sync.Mutex
	formats []*scripted.Format

	// Options
	executionTimeout time.Duration
	instructionLimit int64
	logger           *slog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostExecutionTimeout sets the execution timeout for script calls.
func WithHostExecutionTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.executionTimeout = d
	}
}

// WithHostInstructionLimit sets the per-call Lua instruction budget.
func WithHostInstructionLimit(limit int64) HostOption {
	return func(h *Host) {
		h.instructionLimit = limit
	}
}

// WithHostLogger sets the logger for extension lifecycle messages.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger
	}
}

// NewHost creates an extension host for the given manifest.
// Formats the extension registers go into the given registry.
func NewHost(manifest *Manifest, registry *format.Registry, opts ...HostOption) (*Host, error) {
	if manifest == nil {
		return nil, ErrNilManifest
	}

	h := &Host{
		name:             manifest.Name,
		manifest:         manifest,
		registry:         registry,
		extState:         StateUnloaded,
		executionTimeout: script.DefaultExecutionTimeout,
		instructionLimit: script.DefaultInstructionLimit,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Name returns the extension name.
func (h *Host) Name() string {
	return h.name
}

// Manifest returns the extension manifest.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// State returns the current extension state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.extState
}

// Error returns any error from the last load attempt.
func (h *Host) Error() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Formats returns the formats the extension has registered.
func (h *Host) Formats() []*scripted.Format {
	h.fmu.Lock()
	defer h.fmu.Unlock()
	return append([]*scripted.Format{}, h.formats...)
}

// Load creates the Lua runtime, installs the mapstorm API, and runs the
// extension's main file. Formats the script registers become available
// in the registry when Load returns.
func (h *Host) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.extState != StateUnloaded && h.extState != StateError {
		return ErrAlreadyLoaded
	}

	h.extState = StateLoading

	rt, err := script.NewRuntime(
		script.WithExecutionTimeout(h.executionTimeout),
		script.WithInstructionLimit(h.instructionLimit),
	)
	if err != nil {
		h.extState = StateError
		h.err = err
		return err
	}
	h.runtime = rt

	h.installAPI()

	mainPath := h.manifest.MainPath()
	if err := rt.DoFile(mainPath); err != nil {
		h.teardownLocked()
		h.extState = StateError
		h.err = fmt.Errorf("failed to load extension: %w", err)
		return h.err
	}

	h.extState = StateLoaded
	h.err = nil
	h.logger.Debug("extension loaded",
		"extension", h.name,
		"formats", len(h.formats))
	return nil
}

// installAPI makes the mapstorm module available both as a global and
// through require("mapstorm").
func (h *Host) installAPI() {
	funcs := map[string]lua.LGFunction{
		"register_map_format": h.luaRegisterMapFormat,
		"log":                 h.luaLog,
	}

	h.runtime.RegisterModule(APIModule, funcs)

	L := h.runtime.LuaState()
	L.PreloadModule(APIModule, func(L *lua.LState) int {
		L.Push(L.SetFuncs(L.NewTable(), funcs))
		return 1
	})
}

// luaRegisterMapFormat implements mapstorm.register_map_format(name, table).
// Validation failures are raised as Lua errors so the script aborts.
func (h *Host) luaRegisterMapFormat(L *lua.LState) int {
	name := L.CheckString(1)
	table := L.CheckTable(2)

	f, err := scripted.New(name, table, h.runtime, h.registry)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	h.fmu.Lock()
	h.formats = append(h.formats, f)
	h.fmu.Unlock()
	return 0
}

// luaLog implements mapstorm.log(message).
func (h *Host) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	h.logger.Info(msg, "extension", h.name)
	return 0
}

// Unload unregisters the extension's formats and closes the runtime.
func (h *Host) Unload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.extState == StateUnloaded {
		return nil
	}

	h.teardownLocked()
	h.extState = StateUnloaded
	h.err = nil
	h.logger.Debug("extension unloaded", "extension", h.name)
	return nil
}

// teardownLocked closes registered formats and the runtime.
// Must be called with mu held.
func (h *Host) teardownLocked() {
	h.fmu.Lock()
	formats := h.formats
	h.formats = nil
	h.fmu.Unlock()

	for _, f := range formats {
		if err := f.Close(); err != nil {
			h.logger.Warn("failed to unregister format",
				"extension", h.name,
				"format", f.Name(),
				"error", err)
		}
	}

	if h.runtime != nil {
		h.runtime.Close()
		h.runtime = nil
	}
}

// Reload unloads and reloads the extension.
func (h *Host) Reload(ctx context.Context) error {
	if err := h.Unload(ctx); err != nil {
		return err
	}
	return h.Load(ctx)
}

// Call calls a global Lua function in the extension, converting arguments
// and results between Go and Lua values.
func (h *Host) Call(fn string, args ...interface{}) ([]interface{}, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.runtime == nil {
		return nil, ErrNotLoaded
	}

	bridge := script.NewBridge(h.runtime.LuaState())
	luaArgs := make([]lua.LValue, len(args))
	for i, arg := range args {
		luaArgs[i] = bridge.ToLua(arg)
	}

	results, err := h.runtime.CallGlobal(fn, luaArgs...)
	if err != nil {
		return nil, err
	}

	goResults := make([]interface{}, len(results))
	for i, result := range results {
		goResults[i] = bridge.ToGo(result)
	}
	return goResults, nil
}

// HasFunction returns true if the extension has the named global function.
func (h *Host) HasFunction(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.runtime == nil {
		return false
	}
	return script.IsCallable(h.runtime.GetGlobal(name))
}

// DoString executes Lua code in the extension's runtime.
func (h *Host) DoString(code string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.runtime == nil {
		return ErrNotLoaded
	}
	return h.runtime.DoString(code)
}

// Stats returns runtime statistics for the extension.
func (h *Host) Stats() HostStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.fmu.Lock()
	formats := len(h.formats)
	h.fmu.Unlock()

	return HostStats{
		Name:     h.name,
		State:    h.extState,
		Formats:  formats,
		HasError: h.err != nil,
	}
}

// HostStats contains runtime statistics for an extension host.
type HostStats struct {
	Name     string
	State    State
	Formats  int
	HasError bool
}
