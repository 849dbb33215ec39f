package tilemap

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Orientation is the projection used to place tiles on screen.
type Orientation int

// Supported orientations.
const (
	// Orthogonal - Rectangular grid.
	Orthogonal Orientation = iota

	// Isometric - Diamond-shaped grid.
	Isometric

	// Hexagonal - Hex grid.
	Hexagonal
)

// String returns a string representation of the orientation.
func (o Orientation) String() string {
	switch o {
	case Orthogonal:
		return "orthogonal"
	case Isometric:
		return "isometric"
	case Hexagonal:
		return "hexagonal"
	default:
		return "unknown"
	}
}

// ParseOrientation parses an orientation name.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "orthogonal", "":
		return Orthogonal, nil
	case "isometric":
		return Isometric, nil
	case "hexagonal":
		return Hexagonal, nil
	default:
		return Orthogonal, fmt.Errorf("%w: %q", ErrInvalidOrientation, s)
	}
}

// Map is a complete tile map document.
type Map struct {
	// ID identifies the document instance. It is assigned on creation and
	// survives cloning so callers can correlate clones with their source.
	ID uuid.UUID

	// Width and Height are the map dimensions in tiles.
	Width  int
	Height int

	// TileWidth and TileHeight are the tile dimensions in pixels.
	TileWidth  int
	TileHeight int

	// Orientation is the tile projection.
	Orientation Orientation

	// Layers in draw order, bottom first.
	Layers []Layer

	// Tilesets referenced by this map's tile layers.
	Tilesets []*Tileset

	// Properties holds custom map metadata.
	Properties Properties
}

// NewMap creates an empty map with the given dimensions.
func NewMap(width, height, tileWidth, tileHeight int) *Map {
	return &Map{
		ID:         uuid.New(),
		Width:      width,
		Height:     height,
		TileWidth:  tileWidth,
		TileHeight: tileHeight,
		Properties: NewProperties(),
	}
}

// AddLayer appends a layer to the map.
func (m *Map) AddLayer(l Layer) {
	m.Layers = append(m.Layers, l)
}

// LayerByName returns the first layer with the given name.
func (m *Map) LayerByName(name string) (Layer, bool) {
	for _, l := range m.Layers {
		if l.LayerName() == name {
			return l, true
		}
	}
	return nil, false
}

// AddTileset registers a tileset, keeping tilesets sorted by FirstGID.
func (m *Map) AddTileset(ts *Tileset) {
	m.Tilesets = append(m.Tilesets, ts)
	sort.Slice(m.Tilesets, func(i, j int) bool {
		return m.Tilesets[i].FirstGID < m.Tilesets[j].FirstGID
	})
}

// TilesetForGID resolves a global tile ID to the tileset containing it.
// GID 0 (empty) never resolves.
func (m *Map) TilesetForGID(gid uint32) (*Tileset, error) {
	if gid == 0 {
		return nil, fmt.Errorf("%w: 0", ErrUnknownGID)
	}
	var found *Tileset
	for _, ts := range m.Tilesets {
		if ts.FirstGID <= gid {
			found = ts
		} else {
			break
		}
	}
	if found == nil || !found.Contains(gid) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGID, gid)
	}
	return found, nil
}

// Validate checks the structural invariants of the map.
func (m *Map) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, m.Width, m.Height)
	}
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTileSize, m.TileWidth, m.TileHeight)
	}

	seen := make(map[string]bool, len(m.Layers))
	for _, l := range m.Layers {
		name := l.LayerName()
		if name != "" && seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateLayerName, name)
		}
		seen[name] = true

		if tl, ok := l.(*TileLayer); ok {
			if tl.Width != m.Width || tl.Height != m.Height {
				return fmt.Errorf("%w: layer %q is %dx%d, map is %dx%d",
					ErrLayerSizeMismatch, name, tl.Width, tl.Height, m.Width, m.Height)
			}
			if len(tl.Tiles) != tl.Width*tl.Height {
				return fmt.Errorf("%w: layer %q has %d tiles, want %d",
					ErrLayerSizeMismatch, name, len(tl.Tiles), tl.Width*tl.Height)
			}
		}
	}

	for i := 1; i < len(m.Tilesets); i++ {
		prev, cur := m.Tilesets[i-1], m.Tilesets[i]
		if prev.FirstGID+uint32(prev.TileCount) > cur.FirstGID {
			return fmt.Errorf("%w: %q and %q", ErrTilesetOverlap, prev.Name, cur.Name)
		}
	}

	return nil
}

// Clone creates a deep copy of the map. The clone keeps the same ID.
func (m *Map) Clone() *Map {
	clone := &Map{
		ID:          m.ID,
		Width:       m.Width,
		Height:      m.Height,
		TileWidth:   m.TileWidth,
		TileHeight:  m.TileHeight,
		Orientation: m.Orientation,
		Properties:  m.Properties.Clone(),
	}

	if m.Layers != nil {
		clone.Layers = make([]Layer, len(m.Layers))
		for i, l := range m.Layers {
			clone.Layers[i] = l.CloneLayer()
		}
	}

	if m.Tilesets != nil {
		clone.Tilesets = make([]*Tileset, len(m.Tilesets))
		for i, ts := range m.Tilesets {
			clone.Tilesets[i] = ts.Clone()
		}
	}

	return clone
}

// String returns a short description of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map %dx%d (%d layers, %d tilesets)",
		m.Width, m.Height, len(m.Layers), len(m.Tilesets))
}
