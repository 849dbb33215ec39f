package scripted

import (
	"os"

	lua "github.com/yuin/gopher-lua"
)

// ScriptFile is the file handle passed to a scripted format's read
// callback. Open failures are captured in Err rather than returned, so
// scripts can read first and check the error after.
type ScriptFile struct {
	Path string
	Err  string
}

// NewScriptFile creates a handle for the given path.
func NewScriptFile(path string) *ScriptFile {
	return &ScriptFile{Path: path}
}

// ReadText returns the whole file as a string.
// On failure the error is recorded and "" is returned.
func (f *ScriptFile) ReadText() string {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		f.Err = err.Error()
		return ""
	}
	return string(data)
}

// ReadBytes returns the raw file content.
// On failure the error is recorded and nil is returned.
func (f *ScriptFile) ReadBytes() []byte {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		f.Err = err.Error()
		return nil
	}
	return data
}

// ToLua wraps the handle as a table exposing path, read_text(),
// read_bytes() and error() to scripts.
func (f *ScriptFile) ToLua(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("path", lua.LString(f.Path))

	t.RawSetString("read_text", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(f.ReadText()))
		return 1
	}))

	t.RawSetString("read_bytes", L.NewFunction(func(L *lua.LState) int {
		data := f.ReadBytes()
		if data == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(data))
		return 1
	}))

	t.RawSetString("error", L.NewFunction(func(L *lua.LState) int {
		if f.Err == "" {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(f.Err))
		return 1
	}))

	return t
}
