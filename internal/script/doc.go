// Package script embeds the Lua runtime that extension code runs in.
//
// A Runtime wraps a sandboxed gopher-lua state: the io, os, debug and
// package-loading facilities are withheld so extension scripts can only
// touch what the host hands them. The Bridge converts between Lua values
// and Go values, and the Reporter is the host's error channel - script
// validation failures and runtime errors raised by the host are recorded
// there rather than panicking.
//
// gopher-lua states are not goroutine-safe. A Runtime serializes access
// with an internal mutex, but callers must not share the raw LState
// across goroutines.
package script
