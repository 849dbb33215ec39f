// Package app wires the pieces of mapstorm together: configuration,
// the format registry with its built-in formats, and the extension
// manager. The CLI commands work against an App.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/mapstorm/internal/config"
	"github.com/dshills/mapstorm/internal/extension"
	"github.com/dshills/mapstorm/internal/format"
	"github.com/dshills/mapstorm/internal/format/mapjson"
	"github.com/dshills/mapstorm/internal/format/mapxml"
)

// App holds the assembled application.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Registry   *format.Registry
	Extensions *extension.Manager
}

// New assembles an App from configuration. The built-in JSON and XML
// formats are registered; extensions are discovered but not loaded
// until LoadExtensions.
func New(cfg *config.Config) (*App, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	registry := format.NewRegistry()
	if _, err := registry.Register(mapjson.New()); err != nil {
		return nil, fmt.Errorf("failed to register json format: %w", err)
	}
	if _, err := registry.Register(mapxml.New()); err != nil {
		return nil, fmt.Errorf("failed to register xml format: %w", err)
	}

	manager := extension.NewManager(registry, cfg.ManagerConfig(logger))

	return &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   registry,
		Extensions: manager,
	}, nil
}

// LoadExtensions loads all discovered extensions. Individual failures
// are logged, not fatal: one broken extension should not take down the
// tool.
func (a *App) LoadExtensions(ctx context.Context) error {
	if err := a.Extensions.LoadAll(ctx); err != nil {
		a.Logger.Warn("some extensions failed to load", "error", err)
	}
	return nil
}

// Watch starts live reload of extensions. The returned watcher must be
// Closed by the caller.
func (a *App) Watch() (*extension.Watcher, error) {
	return extension.NewWatcher(a.Extensions,
		extension.WithDebounce(a.Config.Debounce()),
		extension.WithWatcherLogger(a.Logger))
}

// Close unloads all extensions.
func (a *App) Close(ctx context.Context) error {
	return a.Extensions.UnloadAll(ctx)
}

// Reader resolves the format to read a file with. An explicit name
// wins; otherwise the registry picks by file extension.
func (a *App) Reader(path, explicit string) (format.MapFormat, error) {
	if explicit != "" {
		f, err := a.Registry.ByName(explicit)
		if err != nil {
			return nil, err
		}
		if !f.Capabilities().Has(format.CanRead) {
			return nil, fmt.Errorf("format %q: %w", explicit, format.ErrNotReadable)
		}
		return f, nil
	}
	return a.Registry.FindReader(path)
}

// Writer resolves the format to write a file with. An explicit name
// wins; then the file extension; then the configured default format.
func (a *App) Writer(path, explicit string) (format.MapFormat, error) {
	if explicit != "" {
		f, err := a.Registry.ByName(explicit)
		if err != nil {
			return nil, err
		}
		if !f.Capabilities().Has(format.CanWrite) {
			return nil, fmt.Errorf("format %q: %w", explicit, format.ErrNotWritable)
		}
		return f, nil
	}

	if f, err := a.Registry.FindWriter(path); err == nil {
		return f, nil
	}

	f, err := a.Registry.ByName(a.Config.Output.DefaultFormat)
	if err != nil {
		return nil, fmt.Errorf("no format for %s and no usable default: %w", path, err)
	}
	if !f.Capabilities().Has(format.CanWrite) {
		return nil, fmt.Errorf("default format %q: %w", a.Config.Output.DefaultFormat, format.ErrNotWritable)
	}
	return f, nil
}

// WriteOptions derives the format options from configuration.
func (a *App) WriteOptions() format.Options {
	var opts format.Options
	if a.Config.Output.Minimized {
		opts |= format.WriteMinimized
	}
	return opts
}
