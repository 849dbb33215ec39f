package extension

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ManifestFile is the manifest filename inside an extension directory.
const ManifestFile = "extension.json"

// Manifest describes an extension's metadata and contributions.
type Manifest struct {
	// Identity
	Name        string `json:"name"`        // Unique identifier (e.g., "csv-maps")
	Version     string `json:"version"`     // Semver (e.g., "1.2.0")
	DisplayName string `json:"displayName"` // Human-readable name
	Description string `json:"description"` // Short description
	Author      string `json:"author"`      // Author name or org
	License     string `json:"license"`     // SPDX license identifier
	Homepage    string `json:"homepage"`    // URL to extension homepage

	// Entry point
	Main string `json:"main"` // Relative path to main Lua file (default: "init.lua")

	// Formats the extension declares it will register. Informational:
	// the authoritative set is whatever the script actually registers.
	Formats []FormatContribution `json:"formats"`

	// Internal: path to the extension directory
	path string
}

// FormatContribution declares a map format the extension provides.
type FormatContribution struct {
	Name      string `json:"name"`      // Format short name (e.g., "csv")
	Extension string `json:"extension"` // File extension without dot (e.g., "csv")
	CanRead   bool   `json:"canRead"`   // Format supports reading
	CanWrite  bool   `json:"canWrite"`  // Format supports writing
}

// namePattern validates extension names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates an extension manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir loads a manifest from an extension directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// NewManifestMinimal creates a minimal manifest for single-file extensions.
func NewManifestMinimal(name, path string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    "init.lua",
		path:    path,
	}
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if m.Version == "" {
		return ErrMissingVersion
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}

	if m.Main != "" && filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	for i, f := range m.Formats {
		if f.Name == "" {
			return fmt.Errorf("%w at index %d", ErrMissingFormat, i)
		}
		if f.Extension == "" {
			return fmt.Errorf("%w at index %d (name: %s)", ErrMissingExtension, i, f.Name)
		}
	}

	return nil
}

// Path returns the path to the extension directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	if m.Formats != nil {
		clone.Formats = make([]FormatContribution, len(m.Formats))
		copy(clone.Formats, m.Formats)
	}
	return &clone
}
