package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts between Lua values and Go values for one LState.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGo converts a Lua value to a Go value. Tables become
// []interface{} (contiguous 1-based integer keys) or
// map[string]interface{}; cycles are broken with nil.
func (b *Bridge) ToGo(lv lua.LValue) interface{} {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, visited map[*lua.LTable]bool) interface{} {
	if lv == nil {
		return nil
	}

	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	case *lua.LNilType:
		return nil
	case *lua.LUserData:
		return v.Value
	default:
		// Functions and channels have no Go representation here.
		return nil
	}
}

// tableToGo converts a table to a slice or a map.
func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) interface{} {
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		kn, ok := k.(lua.LNumber)
		if !ok || float64(kn) != float64(int(kn)) || int(kn) < 1 {
			isArray = false
			return
		}
		if int(kn) > maxN {
			maxN = int(kn)
		}
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]interface{}, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]interface{}, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = b.toGo(v, visited)
	})
	return m
}

// ToLua converts a Go value to a Lua value.
func (b *Bridge) ToLua(v interface{}) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []interface{}:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, b.ToLua(e))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case []uint32:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, lua.LNumber(e))
		}
		return t
	case map[string]interface{}:
		t := b.L.NewTable()
		for k, e := range val {
			t.RawSetString(k, b.ToLua(e))
		}
		return t
	case lua.LValue:
		return val
	default:
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}
}

// Field returns a raw table field.
func (b *Bridge) Field(t *lua.LTable, key string) lua.LValue {
	return t.RawGetString(key)
}

// StringField returns a string table field.
func (b *Bridge) StringField(t *lua.LTable, key string) (string, bool) {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s), true
	}
	return "", false
}

// IntField returns an integer table field.
func (b *Bridge) IntField(t *lua.LTable, key string) (int, bool) {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return int(n), true
	}
	return 0, false
}

// BoolField returns a boolean table field.
func (b *Bridge) BoolField(t *lua.LTable, key string) (bool, bool) {
	if v, ok := t.RawGetString(key).(lua.LBool); ok {
		return bool(v), true
	}
	return false, false
}

// FuncField returns a function table field.
func (b *Bridge) FuncField(t *lua.LTable, key string) (*lua.LFunction, bool) {
	if f, ok := t.RawGetString(key).(*lua.LFunction); ok {
		return f, true
	}
	return nil, false
}

// TableField returns a table table field.
func (b *Bridge) TableField(t *lua.LTable, key string) (*lua.LTable, bool) {
	if sub, ok := t.RawGetString(key).(*lua.LTable); ok {
		return sub, true
	}
	return nil, false
}

// IsCallable reports whether the value can be called.
func IsCallable(v lua.LValue) bool {
	return v != nil && v.Type() == lua.LTFunction
}
