// Package format defines the map file-format interface and the registry
// that maps between file extensions and the formats able to handle them.
//
// A Format is anything that can read and/or write a tilemap.Map from a
// file. Native formats (internal/format/mapjson, internal/format/mapxml)
// are compiled in; scripted formats (internal/format/scripted) are
// registered at runtime by Lua extensions.
//
// Registration is token-based: Register returns an opaque token that the
// owner uses to Unregister, so scripted formats can be cleanly removed
// when their extension is unloaded or reloaded.
package format
