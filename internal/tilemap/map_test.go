package tilemap

import (
	"errors"
	"testing"
)

func TestNewMap(t *testing.T) {
	m := NewMap(10, 8, 16, 16)
	if m.Width != 10 || m.Height != 8 {
		t.Errorf("size = %dx%d, want 10x8", m.Width, m.Height)
	}
	if m.TileWidth != 16 || m.TileHeight != 16 {
		t.Errorf("tile size = %dx%d, want 16x16", m.TileWidth, m.TileHeight)
	}
	if m.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("NewMap() did not assign an ID")
	}
	if m.Properties == nil {
		t.Error("NewMap() did not initialize properties")
	}
}

func TestParseOrientation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Orientation
		wantErr bool
	}{
		{"orthogonal", "orthogonal", Orthogonal, false},
		{"isometric", "isometric", Isometric, false},
		{"hexagonal", "hexagonal", Hexagonal, false},
		{"empty defaults to orthogonal", "", Orthogonal, false},
		{"unknown", "diagonal", Orthogonal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrientation(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOrientation(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseOrientation(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMapValidate(t *testing.T) {
	valid := func() *Map {
		m := NewMap(4, 3, 16, 16)
		m.AddLayer(NewTileLayer("ground", 4, 3))
		m.AddTileset(&Tileset{Name: "terrain", FirstGID: 1, TileCount: 8})
		return m
	}

	tests := []struct {
		name    string
		mutate  func(*Map)
		wantErr error
	}{
		{"valid", func(_ *Map) {}, nil},
		{"zero width", func(m *Map) { m.Width = 0 }, ErrInvalidSize},
		{"negative height", func(m *Map) { m.Height = -1 }, ErrInvalidSize},
		{"zero tile size", func(m *Map) { m.TileWidth = 0 }, ErrInvalidTileSize},
		{"layer size mismatch", func(m *Map) {
			m.AddLayer(NewTileLayer("small", 2, 2))
		}, ErrLayerSizeMismatch},
		{"duplicate layer name", func(m *Map) {
			m.AddLayer(NewTileLayer("ground", 4, 3))
		}, ErrDuplicateLayerName},
		{"tileset overlap", func(m *Map) {
			m.AddTileset(&Tileset{Name: "decals", FirstGID: 4, TileCount: 4})
		}, ErrTilesetOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTilesetForGID(t *testing.T) {
	m := NewMap(4, 4, 16, 16)
	m.AddTileset(&Tileset{Name: "b", FirstGID: 9, TileCount: 8})
	m.AddTileset(&Tileset{Name: "a", FirstGID: 1, TileCount: 8})

	tests := []struct {
		name    string
		gid     uint32
		want    string
		wantErr bool
	}{
		{"first tile of a", 1, "a", false},
		{"last tile of a", 8, "a", false},
		{"first tile of b", 9, "b", false},
		{"last tile of b", 16, "b", false},
		{"empty gid", 0, "", true},
		{"past the end", 17, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := m.TilesetForGID(tt.gid)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TilesetForGID(%d) error = %v, wantErr %v", tt.gid, err, tt.wantErr)
			}
			if err == nil && ts.Name != tt.want {
				t.Errorf("TilesetForGID(%d) = %q, want %q", tt.gid, ts.Name, tt.want)
			}
		})
	}
}

func TestMapClone(t *testing.T) {
	m := NewMap(2, 2, 16, 16)
	m.Properties["author"] = "test"

	ground := NewTileLayer("ground", 2, 2)
	ground.SetTile(0, 0, 5)
	m.AddLayer(ground)

	objects := NewObjectLayer("spawns")
	objects.AddObject(&Object{Name: "start", Shape: ShapePoint, X: 8, Y: 8})
	m.AddLayer(objects)

	m.AddTileset(&Tileset{Name: "terrain", FirstGID: 1, TileCount: 8})

	clone := m.Clone()

	if clone.ID != m.ID {
		t.Error("Clone() changed the map ID")
	}

	// Mutating the clone must not touch the original.
	clone.Properties["author"] = "other"
	clone.Layers[0].(*TileLayer).SetTile(0, 0, 9)
	clone.Tilesets[0].Name = "changed"

	if m.Properties["author"] != "test" {
		t.Error("Clone() shares properties with original")
	}
	if ground.TileAt(0, 0) != 5 {
		t.Error("Clone() shares tile data with original")
	}
	if m.Tilesets[0].Name != "terrain" {
		t.Error("Clone() shares tilesets with original")
	}
}

func TestLayerByName(t *testing.T) {
	m := NewMap(2, 2, 16, 16)
	m.AddLayer(NewTileLayer("ground", 2, 2))

	if _, ok := m.LayerByName("ground"); !ok {
		t.Error("LayerByName(ground) not found")
	}
	if _, ok := m.LayerByName("missing"); ok {
		t.Error("LayerByName(missing) should not be found")
	}
}
