package script

import (
	"reflect"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestBridgeToGo(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	b := NewBridge(L)

	tests := []struct {
		name  string
		input lua.LValue
		want  interface{}
	}{
		{"nil", lua.LNil, nil},
		{"true", lua.LTrue, true},
		{"integer", lua.LNumber(7), int64(7)},
		{"float", lua.LNumber(2.5), 2.5},
		{"string", lua.LString("gid"), "gid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ToGo(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToGo(%v) = %v (%T), want %v (%T)", tt.input, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestBridgeToGoTables(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	b := NewBridge(L)

	t.Run("array", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetInt(1, lua.LNumber(1))
		tbl.RawSetInt(2, lua.LNumber(2))

		got, ok := b.ToGo(tbl).([]interface{})
		if !ok {
			t.Fatalf("ToGo(array table) = %T, want []interface{}", b.ToGo(tbl))
		}
		if len(got) != 2 || got[0] != int64(1) || got[1] != int64(2) {
			t.Errorf("ToGo(array table) = %v", got)
		}
	})

	t.Run("map", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetString("name", lua.LString("cave"))

		got, ok := b.ToGo(tbl).(map[string]interface{})
		if !ok {
			t.Fatalf("ToGo(map table) = %T, want map", b.ToGo(tbl))
		}
		if got["name"] != "cave" {
			t.Errorf("ToGo(map table) = %v", got)
		}
	})

	t.Run("sparse array becomes map", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetInt(1, lua.LNumber(1))
		tbl.RawSetInt(3, lua.LNumber(3))

		if _, ok := b.ToGo(tbl).(map[string]interface{}); !ok {
			t.Errorf("sparse table should convert to map, got %T", b.ToGo(tbl))
		}
	})

	t.Run("cycle", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetString("self", tbl)

		got, ok := b.ToGo(tbl).(map[string]interface{})
		if !ok {
			t.Fatalf("ToGo(cyclic table) = %T", b.ToGo(tbl))
		}
		if got["self"] != nil {
			t.Errorf("cycle should break to nil, got %v", got["self"])
		}
	})
}

func TestBridgeToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	b := NewBridge(L)

	tests := []struct {
		name  string
		input interface{}
		want  lua.LValue
	}{
		{"nil", nil, lua.LNil},
		{"bool", true, lua.LTrue},
		{"int", 5, lua.LNumber(5)},
		{"uint32", uint32(9), lua.LNumber(9)},
		{"float", 1.5, lua.LNumber(1.5)},
		{"string", "hi", lua.LString("hi")},
		{"bytes", []byte("raw"), lua.LString("raw")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.ToLua(tt.input); got != tt.want {
				t.Errorf("ToLua(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBridgeToLuaGIDSlice(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	b := NewBridge(L)

	tbl, ok := b.ToLua([]uint32{0, 5, 9}).(*lua.LTable)
	if !ok {
		t.Fatal("ToLua([]uint32) did not produce a table")
	}
	if tbl.Len() != 3 {
		t.Errorf("table length = %d, want 3", tbl.Len())
	}
	if tbl.RawGetInt(2) != lua.LNumber(5) {
		t.Errorf("table[2] = %v, want 5", tbl.RawGetInt(2))
	}
}

func TestBridgeFieldAccessors(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	b := NewBridge(L)

	tbl := L.NewTable()
	tbl.RawSetString("name", lua.LString("json"))
	tbl.RawSetString("count", lua.LNumber(4))
	tbl.RawSetString("ok", lua.LTrue)
	tbl.RawSetString("read", L.NewFunction(func(L *lua.LState) int { return 0 }))
	tbl.RawSetString("nested", L.NewTable())

	if s, ok := b.StringField(tbl, "name"); !ok || s != "json" {
		t.Errorf("StringField(name) = %q, %v", s, ok)
	}
	if n, ok := b.IntField(tbl, "count"); !ok || n != 4 {
		t.Errorf("IntField(count) = %d, %v", n, ok)
	}
	if v, ok := b.BoolField(tbl, "ok"); !ok || !v {
		t.Errorf("BoolField(ok) = %v, %v", v, ok)
	}
	if _, ok := b.FuncField(tbl, "read"); !ok {
		t.Error("FuncField(read) not found")
	}
	if _, ok := b.TableField(tbl, "nested"); !ok {
		t.Error("TableField(nested) not found")
	}

	// Wrong types miss.
	if _, ok := b.StringField(tbl, "count"); ok {
		t.Error("StringField(count) should miss on number")
	}
	if _, ok := b.FuncField(tbl, "name"); ok {
		t.Error("FuncField(name) should miss on string")
	}
}

func TestIsCallable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if IsCallable(lua.LNil) {
		t.Error("IsCallable(nil) = true")
	}
	if IsCallable(lua.LString("f")) {
		t.Error("IsCallable(string) = true")
	}
	if !IsCallable(L.NewFunction(func(L *lua.LState) int { return 0 })) {
		t.Error("IsCallable(function) = false")
	}
}
