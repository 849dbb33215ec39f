// Package extension discovers, loads, and manages Lua extensions.
//
// An extension is a directory containing an extension.json manifest and a
// main Lua file, or a bare .lua file dropped into a search path. When an
// extension loads, its script runs inside a sandboxed runtime with the
// "mapstorm" module preloaded. Scripts call
// mapstorm.register_map_format(name, table) to contribute map formats to
// the shared registry; unloading the extension removes them again.
//
// The Manager owns the set of loaded extensions and emits lifecycle
// events. A Watcher can be attached to reload extensions when their files
// change on disk.
package extension
