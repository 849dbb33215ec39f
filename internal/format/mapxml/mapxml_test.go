package mapxml

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/mapstorm/internal/format"
	"github.com/dshills/mapstorm/internal/tilemap"
)

func sampleMap(t *testing.T) *tilemap.Map {
	t.Helper()

	m := tilemap.NewMap(2, 2, 16, 16)
	m.Properties["author"] = "test"
	m.Properties["difficulty"] = int64(3)

	m.AddTileset(&tilemap.Tileset{
		Name:       "terrain",
		FirstGID:   1,
		TileWidth:  16,
		TileHeight: 16,
		TileCount:  8,
		Columns:    4,
		Image:      "terrain.png",
		Properties: tilemap.NewProperties(),
	})

	ground := tilemap.NewTileLayer("ground", 2, 2)
	copy(ground.Tiles, []uint32{1, 2, 0, 4})
	m.AddLayer(ground)

	spawns := tilemap.NewObjectLayer("spawns")
	spawns.AddObject(&tilemap.Object{
		Name:       "start",
		Shape:      tilemap.ShapePoint,
		X:          8,
		Y:          24,
		Properties: tilemap.NewProperties(),
	})
	spawns.AddObject(&tilemap.Object{
		Name:  "zone",
		Shape: tilemap.ShapePolygon,
		X:     0,
		Y:     0,
		Polygon: []tilemap.Point{
			{X: 0, Y: 0}, {X: 32, Y: 0}, {X: 16, Y: 16},
		},
		Properties: tilemap.NewProperties(),
	})
	m.AddLayer(spawns)

	return m
}

func TestFormatMetadata(t *testing.T) {
	f := New()

	if f.Name() != "xml" {
		t.Errorf("Name() = %q, want %q", f.Name(), "xml")
	}
	if f.NameFilter() != "Mapstorm XML map (*.xml)" {
		t.Errorf("NameFilter() = %q", f.NameFilter())
	}
	if f.Capabilities() != format.ReadWrite {
		t.Errorf("Capabilities() = %v, want ReadWrite", f.Capabilities())
	}
	if !f.SupportsFile("level.xml") {
		t.Error("SupportsFile should accept .xml")
	}
	if f.SupportsFile("level.json") {
		t.Error("SupportsFile should reject .json")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := New()
	path := filepath.Join(t.TempDir(), "level.xml")

	if err := f.Write(sampleMap(t), path, 0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	m, err := f.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if m.Width != 2 || m.Height != 2 {
		t.Errorf("map size = %dx%d, want 2x2", m.Width, m.Height)
	}
	if m.Orientation != tilemap.Orthogonal {
		t.Errorf("orientation = %v, want orthogonal", m.Orientation)
	}
	if got, _ := m.Properties.GetString("author"); got != "test" {
		t.Errorf("author property = %q, want %q", got, "test")
	}
	if got, _ := m.Properties.GetInt("difficulty"); got != 3 {
		t.Errorf("difficulty property = %d, want 3", got)
	}

	if len(m.Tilesets) != 1 {
		t.Fatalf("tileset count = %d, want 1", len(m.Tilesets))
	}
	if m.Tilesets[0].Name != "terrain" || m.Tilesets[0].FirstGID != 1 {
		t.Errorf("tileset = %+v", m.Tilesets[0])
	}

	if len(m.Layers) != 2 {
		t.Fatalf("layer count = %d, want 2", len(m.Layers))
	}

	ground, ok := m.Layers[0].(*tilemap.TileLayer)
	if !ok {
		t.Fatalf("layer 0 is %T, want *TileLayer", m.Layers[0])
	}
	want := []uint32{1, 2, 0, 4}
	for i, gid := range want {
		if ground.Tiles[i] != gid {
			t.Errorf("tile %d = %d, want %d", i, ground.Tiles[i], gid)
		}
	}

	spawns, ok := m.Layers[1].(*tilemap.ObjectLayer)
	if !ok {
		t.Fatalf("layer 1 is %T, want *ObjectLayer", m.Layers[1])
	}
	if len(spawns.Objects) != 2 {
		t.Fatalf("object count = %d, want 2", len(spawns.Objects))
	}
	start := spawns.Objects[0]
	if start.Name != "start" || start.Shape != tilemap.ShapePoint || start.X != 8 || start.Y != 24 {
		t.Errorf("object 0 = %+v", start)
	}
	zone := spawns.Objects[1]
	if zone.Shape != tilemap.ShapePolygon || len(zone.Polygon) != 3 {
		t.Fatalf("object 1 = %+v", zone)
	}
	if zone.Polygon[1].X != 32 || zone.Polygon[2].Y != 16 {
		t.Errorf("polygon = %+v", zone.Polygon)
	}
}

func TestEncodeDocumentShape(t *testing.T) {
	data, err := Encode(sampleMap(t), 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	doc := string(data)

	for _, want := range []string{
		`<map version="1" orientation="orthogonal"`,
		`<tileset name="terrain" firstgid="1"`,
		`<layer name="ground" width="2" height="2"`,
		`<data encoding="csv">`,
		`<objectgroup name="spawns">`,
		`<polygon points="0,0 32,0 16,16"/>`,
		`<property name="author" type="string" value="test"/>`,
		`<property name="difficulty" type="int" value="3"/>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestEncodeMinimized(t *testing.T) {
	m := sampleMap(t)

	full, err := Encode(m, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	min, err := Encode(m, format.WriteMinimized)
	if err != nil {
		t.Fatalf("Encode minimized failed: %v", err)
	}

	if len(min) >= len(full) {
		t.Errorf("minimized (%d bytes) not smaller than indented (%d bytes)", len(min), len(full))
	}
	if _, err := Decode(min); err != nil {
		t.Errorf("minimized output does not decode: %v", err)
	}
}

func TestHiddenLayerRoundTrip(t *testing.T) {
	m := sampleMap(t)
	m.Layers[0].(*tilemap.TileLayer).Hidden = true

	data, err := Encode(m, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Layers[0].Visible() {
		t.Error("hidden layer came back visible")
	}
	if !got.Layers[1].Visible() {
		t.Error("visible layer came back hidden")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantSub string
	}{
		{
			name:    "not xml",
			doc:     `{"width": 2}`,
			wantSub: "invalid XML",
		},
		{
			name:    "missing root",
			doc:     `<level width="2"/>`,
			wantSub: "missing <map> root",
		},
		{
			name:    "missing width",
			doc:     `<map height="2" tilewidth="16" tileheight="16" orientation="orthogonal"/>`,
			wantSub: `missing "width"`,
		},
		{
			name:    "bad orientation",
			doc:     `<map width="2" height="2" tilewidth="16" tileheight="16" orientation="spherical"/>`,
			wantSub: "orientation",
		},
		{
			name: "tile data size mismatch",
			doc: `<map width="2" height="2" tilewidth="16" tileheight="16" orientation="orthogonal">
				<layer name="ground" width="2" height="2"><data encoding="csv">1,2,3</data></layer>
			</map>`,
			wantSub: "3 tiles for 2x2 grid",
		},
		{
			name: "negative layer size",
			doc: `<map width="2" height="2" tilewidth="16" tileheight="16" orientation="orthogonal">
				<layer name="ground" width="-1" height="5"><data encoding="csv"></data></layer>
			</map>`,
			wantSub: "invalid size -1x5",
		},
		{
			name: "overflowing layer size",
			doc: `<map width="2" height="2" tilewidth="16" tileheight="16" orientation="orthogonal">
				<layer name="ground" width="4611686018427387904" height="8"><data encoding="csv"></data></layer>
			</map>`,
			wantSub: "invalid size",
		},
		{
			name: "bad gid",
			doc: `<map width="1" height="1" tilewidth="16" tileheight="16" orientation="orthogonal">
				<layer name="ground" width="1" height="1"><data encoding="csv">banana</data></layer>
			</map>`,
			wantSub: `invalid GID "banana"`,
		},
		{
			name: "unsupported encoding",
			doc: `<map width="1" height="1" tilewidth="16" tileheight="16" orientation="orthogonal">
				<layer name="ground" width="1" height="1"><data encoding="base64">AAAA</data></layer>
			</map>`,
			wantSub: `unsupported encoding "base64"`,
		},
		{
			name: "bad firstgid",
			doc: `<map width="1" height="1" tilewidth="16" tileheight="16" orientation="orthogonal">
				<tileset name="terrain" firstgid="0"/>
			</map>`,
			wantSub: "firstgid must be >= 1",
		},
		{
			name: "unknown object shape",
			doc: `<map width="1" height="1" tilewidth="16" tileheight="16" orientation="orthogonal">
				<objectgroup name="spawns"><object id="1" name="blob" shape="amoeba"/></objectgroup>
			</map>`,
			wantSub: `unknown shape "amoeba"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	f := New()
	_, err := f.Read(filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if f.Error() == "" {
		t.Error("Error() should report the failure")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
