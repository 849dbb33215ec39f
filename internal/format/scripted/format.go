package scripted

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mapstorm/internal/format"
	"github.com/dshills/mapstorm/internal/savefile"
	"github.com/dshills/mapstorm/internal/script"
	"github.com/dshills/mapstorm/internal/tilemap"
)

// Format adapts a script-provided table to format.MapFormat.
//
// The table is inspected lazily: name, extension and the read/write
// callbacks are looked up per call, so a script that mutates its format
// table sees the change take effect immediately, as it would in a
// dynamic host.
type Format struct {
	mu sync.Mutex

	shortName string
	table     *lua.LTable
	runtime   *script.Runtime

	registry *format.Registry
	token    format.Token

	lastError string
}

// New validates the table, wraps it, and registers the result with the
// registry. The returned format must be Closed to unregister it.
func New(shortName string, table *lua.LTable, rt *script.Runtime, reg *format.Registry) (*Format, error) {
	if err := ValidateFormatTable(rt, table); err != nil {
		return nil, err
	}

	f := &Format{
		shortName: shortName,
		table:     table,
		runtime:   rt,
		registry:  reg,
	}

	token, err := reg.Register(f)
	if err != nil {
		return nil, err
	}
	f.token = token
	return f, nil
}

// ValidateFormatTable checks that a table is usable as a map format.
// Violations are thrown through the runtime's Reporter and returned.
func ValidateFormatTable(rt *script.Runtime, table *lua.LTable) error {
	if table == nil {
		return rt.Reporter().Throw("invalid map format object (table expected)")
	}

	b := script.NewBridge(rt.LuaState())

	if _, ok := b.StringField(table, "name"); !ok {
		return rt.Reporter().Throw("invalid map format object (requires string 'name' property)")
	}
	if _, ok := b.StringField(table, "extension"); !ok {
		return rt.Reporter().Throw("invalid map format object (requires string 'extension' property)")
	}

	readFn := b.Field(table, "read")
	writeFn := b.Field(table, "write")
	if !script.IsCallable(readFn) && !script.IsCallable(writeFn) {
		return rt.Reporter().Throw("invalid map format object (requires a 'write' and/or 'read' function property)")
	}

	return nil
}

// Close unregisters the format. Safe to call more than once.
func (f *Format) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.token == "" {
		return nil
	}
	err := f.registry.Unregister(f.token)
	f.token = ""
	return err
}

// Name returns the registration name.
func (f *Format) Name() string {
	return f.shortName
}

// bridge returns a Bridge for the format's runtime.
func (f *Format) bridge() *script.Bridge {
	return script.NewBridge(f.runtime.LuaState())
}

// displayName returns the table's 'name' property.
func (f *Format) displayName() string {
	s, _ := f.bridge().StringField(f.table, "name")
	return s
}

// extension returns the table's 'extension' property.
func (f *Format) extension() string {
	s, _ := f.bridge().StringField(f.table, "extension")
	return s
}

// binary reports whether the format declared itself binary.
func (f *Format) binary() bool {
	v, _ := f.bridge().BoolField(f.table, "binary")
	return v
}

// Capabilities derives capabilities from which callbacks are callable.
func (f *Format) Capabilities() format.Capability {
	b := f.bridge()

	var caps format.Capability
	if script.IsCallable(b.Field(f.table, "read")) {
		caps |= format.CanRead
	}
	if script.IsCallable(b.Field(f.table, "write")) {
		caps |= format.CanWrite
	}
	return caps
}

// NameFilter returns "<name> (*.<extension>)".
func (f *Format) NameFilter() string {
	return fmt.Sprintf("%s (*.%s)", f.displayName(), f.extension())
}

// SupportsFile reports whether the path carries the format's extension.
func (f *Format) SupportsFile(path string) bool {
	return format.ExtensionMatches(path, f.extension())
}

// Error returns the message from the last failed Read or Write.
func (f *Format) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// setError records the failure message for Error().
func (f *Format) setError(msg string) {
	f.mu.Lock()
	f.lastError = msg
	f.mu.Unlock()
}

// clearError resets the failure message at the start of Read/Write.
func (f *Format) clearError() {
	f.setError("")
}

// Read calls the script's read callback and unmarshals its result.
func (f *Format) Read(path string) (*tilemap.Map, error) {
	f.clearError()

	b := f.bridge()
	readFn, ok := b.FuncField(f.table, "read")
	if !ok {
		err := fmt.Errorf("format %q has no read function", f.shortName)
		f.setError(err.Error())
		return nil, err
	}

	file := NewScriptFile(path)
	results, err := f.runtime.CallValue(readFn, file.ToLua(f.runtime.LuaState()))
	if err != nil {
		f.setError(err.Error())
		return nil, fmt.Errorf("read callback failed: %w", err)
	}

	if len(results) == 0 || results[0] == lua.LNil {
		err := fmt.Errorf("invalid return value for 'read' (map table expected)")
		f.setError(err.Error())
		return nil, err
	}

	table, ok := results[0].(*lua.LTable)
	if !ok {
		err := fmt.Errorf("invalid return value for 'read' (map table expected, got %s)", results[0].Type())
		f.setError(err.Error())
		return nil, err
	}

	m, err := script.MapFromLua(f.runtime.LuaState(), table)
	if err != nil {
		f.setError(err.Error())
		return nil, err
	}
	return m, nil
}

// Write calls the script's write callback and commits the returned
// content atomically. The options bitmask is passed to the script as an
// integer.
func (f *Format) Write(m *tilemap.Map, path string, opts format.Options) error {
	f.clearError()

	b := f.bridge()
	writeFn, ok := b.FuncField(f.table, "write")
	if !ok {
		err := fmt.Errorf("format %q has no write function", f.shortName)
		f.setError(err.Error())
		return err
	}

	L := f.runtime.LuaState()
	mapTable := script.MapToLua(L, m)

	results, err := f.runtime.CallValue(writeFn, mapTable, lua.LString(path), lua.LNumber(opts))
	if err != nil {
		f.setError(err.Error())
		return fmt.Errorf("write callback failed: %w", err)
	}

	content, mode, err := f.writeContent(results)
	if err != nil {
		f.setError(err.Error())
		return err
	}

	if err := savefile.WriteFile(path, content, mode); err != nil {
		f.setError(err.Error())
		return err
	}
	return nil
}

// writeContent extracts the serialized map from the callback's results.
func (f *Format) writeContent(results []lua.LValue) ([]byte, savefile.Mode, error) {
	if len(results) == 0 {
		return nil, 0, fmt.Errorf("invalid return value for 'write' (string expected, got nothing)")
	}

	v, ok := results[0].(lua.LString)
	if !ok {
		return nil, 0, fmt.Errorf("invalid return value for 'write' (string expected, got %s)", results[0].Type())
	}

	// Lua has a single string type for both text and bytes; a format
	// declares binary = true to opt out of line-ending normalization.
	mode := savefile.Text
	if f.binary() {
		mode = savefile.Binary
	}
	return []byte(v), mode, nil
}
