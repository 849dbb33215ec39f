package extension

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/mapstorm/internal/format"
)

// csvExtension is a minimal extension that registers one format.
const csvExtension = `
local csv = {
    name = "CSV map",
    extension = "csv",

    read = function(file)
        return {
            width = 1,
            height = 1,
            tile_width = 16,
            tile_height = 16,
            layers = {},
        }
    end,

    write = function(map, path, opts)
        return tostring(map.width) .. "x" .. tostring(map.height)
    end,
}

mapstorm.register_map_format("csv", csv)
`

func newTestHost(t *testing.T, luaSource string) (*Host, *format.Registry) {
	t.Helper()

	base := t.TempDir()
	writeExtensionDir(t, base, "test-ext", luaSource)

	reg := format.NewRegistry()
	manifest := NewManifestMinimal("test-ext", filepath.Join(base, "test-ext"))

	h, err := NewHost(manifest, reg)
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}
	return h, reg
}

func TestHostLoadRegistersFormats(t *testing.T) {
	h, reg := newTestHost(t, csvExtension)
	ctx := context.Background()

	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer h.Unload(ctx)

	if h.State() != StateLoaded {
		t.Errorf("State = %v, want StateLoaded", h.State())
	}
	if got := len(h.Formats()); got != 1 {
		t.Fatalf("Formats() = %d entries, want 1", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry has %d formats, want 1", reg.Len())
	}

	f, err := reg.ByName("csv")
	if err != nil {
		t.Fatalf("ByName(csv) failed: %v", err)
	}
	if !f.SupportsFile("level.csv") {
		t.Error("registered format should support .csv files")
	}
	if f.NameFilter() != "CSV map (*.csv)" {
		t.Errorf("NameFilter = %q", f.NameFilter())
	}
}

func TestHostUnloadUnregisters(t *testing.T) {
	h, reg := newTestHost(t, csvExtension)
	ctx := context.Background()

	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.Unload(ctx); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}

	if h.State() != StateUnloaded {
		t.Errorf("State = %v, want StateUnloaded", h.State())
	}
	if reg.Len() != 0 {
		t.Errorf("registry has %d formats after unload, want 0", reg.Len())
	}
	if len(h.Formats()) != 0 {
		t.Errorf("Formats() = %d entries after unload, want 0", len(h.Formats()))
	}
}

func TestHostLoadScriptError(t *testing.T) {
	h, reg := newTestHost(t, `this is not lua`)
	ctx := context.Background()

	if err := h.Load(ctx); err == nil {
		t.Fatal("expected Load to fail for invalid script")
	}
	if h.State() != StateError {
		t.Errorf("State = %v, want StateError", h.State())
	}
	if h.Error() == nil {
		t.Error("Error() should report the failure")
	}
	if reg.Len() != 0 {
		t.Errorf("registry has %d formats after failed load, want 0", reg.Len())
	}
}

func TestHostLoadInvalidFormatTable(t *testing.T) {
	h, _ := newTestHost(t, `
mapstorm.register_map_format("bad", { extension = "bad", read = function() end })
`)
	ctx := context.Background()

	err := h.Load(ctx)
	if err == nil {
		t.Fatal("expected Load to fail for invalid format table")
	}
	if !strings.Contains(err.Error(), "requires string 'name' property") {
		t.Errorf("error = %v, want name validation message", err)
	}
}

func TestHostRequireAPI(t *testing.T) {
	h, reg := newTestHost(t, `
local ms = require("mapstorm")
ms.register_map_format("req", {
    name = "Required",
    extension = "req",
    read = function(file) end,
})
`)
	ctx := context.Background()

	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer h.Unload(ctx)

	if reg.Len() != 1 {
		t.Errorf("registry has %d formats, want 1", reg.Len())
	}
}

func TestHostCall(t *testing.T) {
	h, _ := newTestHost(t, `
function greet(name)
    return "hi " .. name
end
`)
	ctx := context.Background()

	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer h.Unload(ctx)

	if !h.HasFunction("greet") {
		t.Error("HasFunction(greet) = false, want true")
	}
	if h.HasFunction("missing") {
		t.Error("HasFunction(missing) = true, want false")
	}

	results, err := h.Call("greet", "bob")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(results) != 1 || results[0] != "hi bob" {
		t.Errorf("Call results = %v, want [hi bob]", results)
	}
}

func TestHostReloadPicksUpChanges(t *testing.T) {
	base := t.TempDir()
	dir := writeExtensionDir(t, base, "mut", `function answer() return 1 end`)

	reg := format.NewRegistry()
	h, err := NewHost(NewManifestMinimal("mut", dir), reg)
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}
	ctx := context.Background()

	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer h.Unload(ctx)

	if err := os.WriteFile(filepath.Join(dir, "init.lua"), []byte(`function answer() return 2 end`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	results, err := h.Call("answer")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(results) != 1 || results[0] != int64(2) {
		t.Errorf("answer() = %v, want [2] after reload", results)
	}
}

func TestHostLifecycleErrors(t *testing.T) {
	reg := format.NewRegistry()

	if _, err := NewHost(nil, reg); !errors.Is(err, ErrNilManifest) {
		t.Errorf("NewHost(nil) = %v, want ErrNilManifest", err)
	}

	h, _ := newTestHost(t, csvExtension)
	ctx := context.Background()

	if err := h.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer h.Unload(ctx)

	if err := h.Load(ctx); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second Load = %v, want ErrAlreadyLoaded", err)
	}

	unloaded, _ := newTestHost(t, csvExtension)
	if _, err := unloaded.Call("greet"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Call on unloaded host = %v, want ErrNotLoaded", err)
	}
}
