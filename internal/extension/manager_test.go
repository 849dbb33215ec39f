package extension

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dshills/mapstorm/internal/format"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	base := t.TempDir()
	m := NewManager(format.NewRegistry(), ManagerConfig{SearchPaths: []string{base}})
	return m, base
}

func TestManagerLoadUnload(t *testing.T) {
	m, base := newTestManager(t)
	writeExtensionDir(t, base, "csv-ext", csvExtension)
	ctx := context.Background()

	host, err := m.Load(ctx, "csv-ext")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if host.State() != StateLoaded {
		t.Errorf("State = %v, want StateLoaded", host.State())
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
	if m.Registry().Len() != 1 {
		t.Errorf("registry has %d formats, want 1", m.Registry().Len())
	}

	if _, ok := m.Get("csv-ext"); !ok {
		t.Error("Get(csv-ext) should find loaded extension")
	}

	if err := m.Unload(ctx, "csv-ext"); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d after unload, want 0", m.Count())
	}
	if m.Registry().Len() != 0 {
		t.Errorf("registry has %d formats after unload, want 0", m.Registry().Len())
	}
}

func TestManagerLoadTwice(t *testing.T) {
	m, base := newTestManager(t)
	writeExtensionDir(t, base, "csv-ext", csvExtension)
	ctx := context.Background()

	if _, err := m.Load(ctx, "csv-ext"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer m.UnloadAll(ctx)

	if _, err := m.Load(ctx, "csv-ext"); !errors.Is(err, ErrAlreadyLoaded) {
		t.Errorf("second Load = %v, want ErrAlreadyLoaded", err)
	}
}

func TestManagerLoadMissing(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Load(context.Background(), "nope")
	if !errors.Is(err, ErrExtensionNotFound) {
		t.Errorf("Load(nope) = %v, want ErrExtensionNotFound", err)
	}
}

func TestManagerUnloadMissing(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Unload(context.Background(), "nope")
	if !errors.Is(err, ErrExtensionNotFound) {
		t.Errorf("Unload(nope) = %v, want ErrExtensionNotFound", err)
	}
}

func TestManagerLoadAll(t *testing.T) {
	m, base := newTestManager(t)
	writeExtensionDir(t, base, "one", `function f() end`)
	writeExtensionDir(t, base, "two", `function g() end`)
	ctx := context.Background()

	if err := m.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	defer m.UnloadAll(ctx)

	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}

	hosts := m.List()
	if len(hosts) != 2 {
		t.Fatalf("List() = %d hosts, want 2", len(hosts))
	}
	// Load order follows discovery order (sorted).
	if hosts[0].Name() != "one" || hosts[1].Name() != "two" {
		t.Errorf("load order = [%s, %s]", hosts[0].Name(), hosts[1].Name())
	}
}

func TestManagerLoadAllReportsFailures(t *testing.T) {
	m, base := newTestManager(t)
	writeExtensionDir(t, base, "good", `function f() end`)
	writeExtensionDir(t, base, "broken", `not lua at all`)
	ctx := context.Background()

	err := m.LoadAll(ctx)
	if err == nil {
		t.Fatal("expected LoadAll to report the broken extension")
	}
	defer m.UnloadAll(ctx)

	// The good one still loads.
	if _, ok := m.Get("good"); !ok {
		t.Error("good extension should be loaded despite sibling failure")
	}
	if _, ok := m.Get("broken"); ok {
		t.Error("broken extension should not be loaded")
	}
}

func TestManagerReload(t *testing.T) {
	m, base := newTestManager(t)
	writeExtensionDir(t, base, "csv-ext", csvExtension)
	ctx := context.Background()

	if _, err := m.Load(ctx, "csv-ext"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer m.UnloadAll(ctx)

	if err := m.Reload(ctx, "csv-ext"); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d after reload, want 1", m.Count())
	}
	if m.Registry().Len() != 1 {
		t.Errorf("registry has %d formats after reload, want 1", m.Registry().Len())
	}

	if err := m.Reload(ctx, "never-loaded"); !errors.Is(err, ErrExtensionNotFound) {
		t.Errorf("Reload(never-loaded) = %v, want ErrExtensionNotFound", err)
	}
}

func TestManagerEvents(t *testing.T) {
	m, base := newTestManager(t)
	writeExtensionDir(t, base, "csv-ext", csvExtension)
	ctx := context.Background()

	var mu sync.Mutex
	var events []ManagerEvent
	unsubscribe := m.Subscribe(func(e ManagerEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	if _, err := m.Load(ctx, "csv-ext"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := m.Unload(ctx, "csv-ext"); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}

	mu.Lock()
	got := append([]ManagerEvent{}, events...)
	mu.Unlock()

	if len(got) != 2 {
		t.Fatalf("received %d events, want 2", len(got))
	}
	if got[0].Type != EventExtensionLoaded || got[0].Extension != "csv-ext" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].Type != EventExtensionUnloaded {
		t.Errorf("event 1 = %+v", got[1])
	}

	// After unsubscribe, no more events.
	unsubscribe()
	if _, err := m.Load(ctx, "csv-ext"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer m.UnloadAll(ctx)

	mu.Lock()
	count := len(events)
	mu.Unlock()
	if count != 2 {
		t.Errorf("received %d events after unsubscribe, want 2", count)
	}
}

func TestManagerErrorEvent(t *testing.T) {
	m, base := newTestManager(t)
	writeExtensionDir(t, base, "broken", `nonsense(`)
	ctx := context.Background()

	var mu sync.Mutex
	var errorEvents int
	m.Subscribe(func(e ManagerEvent) {
		if e.Type == EventExtensionError {
			mu.Lock()
			errorEvents++
			mu.Unlock()
		}
	})

	if _, err := m.Load(ctx, "broken"); err == nil {
		t.Fatal("expected Load to fail")
	}

	mu.Lock()
	defer mu.Unlock()
	if errorEvents != 1 {
		t.Errorf("received %d error events, want 1", errorEvents)
	}
}

func TestManagerEventTypeString(t *testing.T) {
	tests := map[ManagerEventType]string{
		EventExtensionLoaded:   "loaded",
		EventExtensionUnloaded: "unloaded",
		EventExtensionReloaded: "reloaded",
		EventExtensionError:    "error",
	}
	for typ, want := range tests {
		if typ.String() != want {
			t.Errorf("%d.String() = %q, want %q", typ, typ.String(), want)
		}
	}
}
