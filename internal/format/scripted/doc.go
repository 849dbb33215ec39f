// Package scripted adapts a Lua-provided table into a map file format.
//
// An extension script registers a format by handing the host a table:
//
//	mapstorm.register_map_format("csv", {
//	    name = "CSV map",
//	    extension = "csv",
//	    read = function(file) ... return map end,
//	    write = function(map, path, options) ... return content end,
//	})
//
// The table must carry a string 'name', a string 'extension', and at
// least one of 'read'/'write' as a function; capabilities follow from
// which of the two are callable. Read receives a file handle with
// read_text()/read_bytes(); write must return the serialized content as
// a string, which the host commits atomically through the savefile
// layer.
//
// Everything the script does wrong is routed through the runtime's
// Reporter rather than panicking, and each format keeps the message of
// its last failed read or write for the UI to display.
package scripted
