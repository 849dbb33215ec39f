package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader discovers extensions on the filesystem.
type Loader struct {
	// Search paths for extensions (checked in order)
	paths []string

	// Discovered extensions cache
	discovered map[string]*Info
}

// Info contains discovery information about an extension.
type Info struct {
	Name     string
	Path     string
	Manifest *Manifest
	State    State
	Error    error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the extension search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a new extension loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:      DefaultSearchPaths(),
		discovered: make(map[string]*Info),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// DefaultSearchPaths returns the default extension search paths.
func DefaultSearchPaths() []string {
	paths := make([]string, 0, 3)

	// User extensions: ~/.config/mapstorm/extensions/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mapstorm", "extensions"))
		paths = append(paths, filepath.Join(home, ".local", "share", "mapstorm", "extensions"))
	}

	// Project extensions: .mapstorm/extensions/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".mapstorm", "extensions"))
	}

	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// AddPath adds a search path.
func (l *Loader) AddPath(path string) {
	l.paths = append(l.paths, path)
}

// Discover finds all extensions in the search paths, sorted by name.
func (l *Loader) Discover() ([]*Info, error) {
	l.discovered = make(map[string]*Info)

	for _, basePath := range l.paths {
		// Missing paths are not errors.
		if err := l.discoverInPath(basePath); err != nil {
			continue
		}
	}

	infos := make([]*Info, 0, len(l.discovered))
	for _, info := range l.discovered {
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos, nil
}

// discoverInPath finds extensions in a single directory.
func (l *Loader) discoverInPath(basePath string) error {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			// Bare .lua files are single-file extensions.
			if filepath.Ext(entry.Name()) == ".lua" {
				name := strings.TrimSuffix(entry.Name(), ".lua")
				l.addSingleFile(name, filepath.Join(basePath, entry.Name()))
			}
			continue
		}

		extPath := filepath.Join(basePath, entry.Name())
		info := l.inspect(entry.Name(), extPath)

		// First path wins.
		if _, exists := l.discovered[info.Name]; !exists {
			l.discovered[info.Name] = info
		}
	}

	return nil
}

// addSingleFile records a single-file extension.
func (l *Loader) addSingleFile(name, luaPath string) {
	if _, exists := l.discovered[name]; exists {
		return
	}

	manifest := NewManifestMinimal(name, filepath.Dir(luaPath))
	manifest.Main = filepath.Base(luaPath)

	l.discovered[name] = &Info{
		Name:     name,
		Path:     filepath.Dir(luaPath),
		Manifest: manifest,
		State:    StateUnloaded,
	}
}

// inspect examines an extension directory and returns its info.
func (l *Loader) inspect(name, path string) *Info {
	info := &Info{
		Name:  name,
		Path:  path,
		State: StateUnloaded,
	}

	manifestPath := filepath.Join(path, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		manifest, err := LoadManifest(manifestPath)
		if err != nil {
			info.Error = fmt.Errorf("invalid manifest: %w", err)
			info.State = StateError
			return info
		}
		info.Manifest = manifest
		info.Name = manifest.Name
		return info
	}

	// No manifest - check for init.lua
	if _, err := os.Stat(filepath.Join(path, "init.lua")); err == nil {
		info.Manifest = NewManifestMinimal(name, path)
		return info
	}

	// Alternative entry point
	if _, err := os.Stat(filepath.Join(path, "extension.lua")); err == nil {
		manifest := NewManifestMinimal(name, path)
		manifest.Main = "extension.lua"
		info.Manifest = manifest
		return info
	}

	info.Error = ErrNoEntryPoint
	info.State = StateError
	return info
}

// Get returns info for a specific extension by name.
func (l *Loader) Get(name string) (*Info, bool) {
	info, ok := l.discovered[name]
	return info, ok
}

// Refresh re-discovers extensions.
func (l *Loader) Refresh() ([]*Info, error) {
	return l.Discover()
}

// Find searches for an extension by name across all paths.
// Returns the first match found.
func (l *Loader) Find(name string) (*Info, error) {
	if info, ok := l.discovered[name]; ok {
		return info, nil
	}

	for _, basePath := range l.paths {
		extPath := filepath.Join(basePath, name)
		if stat, err := os.Stat(extPath); err == nil && stat.IsDir() {
			info := l.inspect(name, extPath)
			if info.Error == nil {
				l.discovered[name] = info
				return info, nil
			}
		}

		luaPath := filepath.Join(basePath, name+".lua")
		if _, err := os.Stat(luaPath); err == nil {
			manifest := NewManifestMinimal(name, basePath)
			manifest.Main = name + ".lua"
			info := &Info{
				Name:     name,
				Path:     basePath,
				Manifest: manifest,
				State:    StateUnloaded,
			}
			l.discovered[name] = info
			return info, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrExtensionNotFound, name)
}

// Validate checks if an extension at the given path is valid.
func (l *Loader) Validate(path string) error {
	info := l.inspect(filepath.Base(path), path)
	if info.Error != nil {
		return info.Error
	}
	if info.Manifest == nil {
		return ErrNoEntryPoint
	}
	return info.Manifest.Validate()
}

// ListNames returns the names of all discovered extensions.
func (l *Loader) ListNames() []string {
	names := make([]string, 0, len(l.discovered))
	for name := range l.discovered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of discovered extensions.
func (l *Loader) Count() int {
	return len(l.discovered)
}

// Errors returns all discovered extensions that have errors.
func (l *Loader) Errors() []*Info {
	var errored []*Info
	for _, info := range l.discovered {
		if info.Error != nil {
			errored = append(errored, info)
		}
	}
	return errored
}
