// Package mapjson implements the native JSON map format.
//
// The document mirrors the tilemap model directly: width/height,
// tilesets, and a layers array whose entries are discriminated by a
// "type" field. Tile data is a flat array of GIDs in row-major order.
package mapjson

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/mapstorm/internal/format"
	"github.com/dshills/mapstorm/internal/savefile"
	"github.com/dshills/mapstorm/internal/tilemap"
)

// Version is the document version this codec writes.
const Version = 1

// Format reads and writes the native JSON map document.
type Format struct {
	mu        sync.Mutex
	lastError string
}

// New creates the JSON format.
func New() *Format {
	return &Format{}
}

// Name returns "json".
func (f *Format) Name() string { return "json" }

// NameFilter returns the file-dialog filter.
func (f *Format) NameFilter() string { return "Mapstorm JSON map (*.json)" }

// Capabilities returns ReadWrite.
func (f *Format) Capabilities() format.Capability { return format.ReadWrite }

// SupportsFile reports whether the path has a .json extension.
func (f *Format) SupportsFile(path string) bool {
	return format.ExtensionMatches(path, "json")
}

// Error returns the message from the last failed Read or Write.
func (f *Format) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

func (f *Format) fail(err error) error {
	f.mu.Lock()
	f.lastError = err.Error()
	f.mu.Unlock()
	return err
}

func (f *Format) clear() {
	f.mu.Lock()
	f.lastError = ""
	f.mu.Unlock()
}

// Read loads a map from a JSON file.
func (f *Format) Read(path string) (*tilemap.Map, error) {
	f.clear()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, f.fail(fmt.Errorf("failed to read %s: %w", path, err))
	}
	if !gjson.ValidBytes(data) {
		return nil, f.fail(fmt.Errorf("%s is not valid JSON", path))
	}

	m, err := Decode(data)
	if err != nil {
		return nil, f.fail(err)
	}
	return m, nil
}

// Write saves a map to a JSON file.
func (f *Format) Write(m *tilemap.Map, path string, opts format.Options) error {
	f.clear()

	data, err := Encode(m, opts)
	if err != nil {
		return f.fail(err)
	}
	if err := savefile.WriteFile(path, data, savefile.Text); err != nil {
		return f.fail(err)
	}
	return nil
}

// Decode parses a JSON map document.
func Decode(data []byte) (*tilemap.Map, error) {
	root := gjson.ParseBytes(data)

	width := root.Get("width")
	height := root.Get("height")
	tileWidth := root.Get("tilewidth")
	tileHeight := root.Get("tileheight")
	for name, field := range map[string]gjson.Result{
		"width": width, "height": height,
		"tilewidth": tileWidth, "tileheight": tileHeight,
	} {
		if !field.Exists() {
			return nil, fmt.Errorf("map document: missing %q", name)
		}
	}

	m := tilemap.NewMap(int(width.Int()), int(height.Int()),
		int(tileWidth.Int()), int(tileHeight.Int()))

	orient, err := tilemap.ParseOrientation(root.Get("orientation").String())
	if err != nil {
		return nil, fmt.Errorf("map document: %w", err)
	}
	m.Orientation = orient

	if props := root.Get("properties"); props.Exists() {
		p, err := decodeProperties(props)
		if err != nil {
			return nil, fmt.Errorf("map document: %w", err)
		}
		m.Properties = p
	}

	var decodeErr error
	root.Get("tilesets").ForEach(func(_, value gjson.Result) bool {
		ts, err := decodeTileset(value)
		if err != nil {
			decodeErr = err
			return false
		}
		m.AddTileset(ts)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	root.Get("layers").ForEach(func(_, value gjson.Result) bool {
		layer, err := decodeLayer(value)
		if err != nil {
			decodeErr = err
			return false
		}
		m.AddLayer(layer)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	return m, nil
}

func decodeProperties(props gjson.Result) (tilemap.Properties, error) {
	p := tilemap.NewProperties()
	var err error
	props.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.True, gjson.False:
			p[key.String()] = value.Bool()
		case gjson.String:
			p[key.String()] = value.String()
		case gjson.Number:
			n := value.Num
			if n == float64(int64(n)) {
				p[key.String()] = int64(n)
			} else {
				p[key.String()] = n
			}
		default:
			err = fmt.Errorf("properties[%s]: unsupported value", key.String())
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeTileset(value gjson.Result) (*tilemap.Tileset, error) {
	name := value.Get("name").String()
	firstGID := value.Get("firstgid").Int()
	if firstGID < 1 {
		return nil, fmt.Errorf("tileset %q: firstgid must be >= 1", name)
	}

	ts := &tilemap.Tileset{
		Name:       name,
		FirstGID:   uint32(firstGID),
		TileWidth:  int(value.Get("tilewidth").Int()),
		TileHeight: int(value.Get("tileheight").Int()),
		TileCount:  int(value.Get("tilecount").Int()),
		Columns:    int(value.Get("columns").Int()),
		Image:      value.Get("image").String(),
		Properties: tilemap.NewProperties(),
	}

	if props := value.Get("properties"); props.Exists() {
		p, err := decodeProperties(props)
		if err != nil {
			return nil, fmt.Errorf("tileset %q: %w", name, err)
		}
		ts.Properties = p
	}
	return ts, nil
}

func decodeLayer(value gjson.Result) (tilemap.Layer, error) {
	kind := value.Get("type").String()
	name := value.Get("name").String()

	switch kind {
	case tilemap.KindTileLayer:
		width := int(value.Get("width").Int())
		height := int(value.Get("height").Int())
		if width <= 0 || height <= 0 || width > math.MaxInt/height {
			return nil, fmt.Errorf("tile layer %q: invalid size %dx%d", name, width, height)
		}
		layer := tilemap.NewTileLayer(name, width, height)

		data := value.Get("data")
		if !data.IsArray() {
			return nil, fmt.Errorf("tile layer %q: missing data array", name)
		}
		gids := data.Array()
		if len(gids) != width*height {
			return nil, fmt.Errorf("tile layer %q: %d tiles for %dx%d grid",
				name, len(gids), width, height)
		}
		for i, gid := range gids {
			layer.Tiles[i] = uint32(gid.Uint())
		}

		decodeLayerCommon(value, &layer.Hidden, &layer.Opacity, &layer.Properties)
		return layer, nil

	case tilemap.KindObjectLayer:
		layer := tilemap.NewObjectLayer(name)
		decodeLayerCommon(value, &layer.Hidden, &layer.Opacity, &layer.Properties)

		var err error
		value.Get("objects").ForEach(func(_, ov gjson.Result) bool {
			obj, objErr := decodeObject(ov)
			if objErr != nil {
				err = fmt.Errorf("object layer %q: %w", name, objErr)
				return false
			}
			layer.AddObject(obj)
			return true
		})
		if err != nil {
			return nil, err
		}
		return layer, nil

	default:
		return nil, fmt.Errorf("unknown layer type %q", kind)
	}
}

func decodeLayerCommon(value gjson.Result, hidden *bool, opacity *float64, props *tilemap.Properties) {
	if v := value.Get("visible"); v.Exists() {
		*hidden = !v.Bool()
	}
	if v := value.Get("opacity"); v.Exists() {
		*opacity = v.Float()
	}
	if v := value.Get("properties"); v.Exists() {
		if p, err := decodeProperties(v); err == nil {
			*props = p
		}
	}
}

func decodeObject(value gjson.Result) (*tilemap.Object, error) {
	obj := &tilemap.Object{
		ID:         int(value.Get("id").Int()),
		Name:       value.Get("name").String(),
		Class:      value.Get("class").String(),
		Shape:      tilemap.ShapeRectangle,
		X:          value.Get("x").Float(),
		Y:          value.Get("y").Float(),
		Width:      value.Get("width").Float(),
		Height:     value.Get("height").Float(),
		Properties: tilemap.NewProperties(),
	}

	if s := value.Get("shape"); s.Exists() {
		shape := tilemap.ObjectShape(s.String())
		switch shape {
		case tilemap.ShapeRectangle, tilemap.ShapeEllipse, tilemap.ShapePoint, tilemap.ShapePolygon:
			obj.Shape = shape
		default:
			return nil, fmt.Errorf("object %q: unknown shape %q", obj.Name, s.String())
		}
	}

	value.Get("polygon").ForEach(func(_, pv gjson.Result) bool {
		obj.Polygon = append(obj.Polygon, tilemap.Point{
			X: pv.Get("x").Float(),
			Y: pv.Get("y").Float(),
		})
		return true
	})

	if props := value.Get("properties"); props.Exists() {
		p, err := decodeProperties(props)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", obj.Name, err)
		}
		obj.Properties = p
	}
	return obj, nil
}

// Encode serializes a map to the JSON document.
func Encode(m *tilemap.Map, opts format.Options) ([]byte, error) {
	doc := []byte(`{}`)
	var err error

	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		doc, err = sjson.SetBytes(doc, path, value)
	}

	set("version", Version)
	set("orientation", m.Orientation.String())
	set("width", m.Width)
	set("height", m.Height)
	set("tilewidth", m.TileWidth)
	set("tileheight", m.TileHeight)
	if len(m.Properties) > 0 {
		set("properties", map[string]interface{}(m.Properties))
	}

	set("tilesets", []interface{}{})
	for i, ts := range m.Tilesets {
		prefix := fmt.Sprintf("tilesets.%d.", i)
		set(prefix+"name", ts.Name)
		set(prefix+"firstgid", ts.FirstGID)
		set(prefix+"tilewidth", ts.TileWidth)
		set(prefix+"tileheight", ts.TileHeight)
		set(prefix+"tilecount", ts.TileCount)
		set(prefix+"columns", ts.Columns)
		set(prefix+"image", ts.Image)
		if len(ts.Properties) > 0 {
			set(prefix+"properties", map[string]interface{}(ts.Properties))
		}
	}

	set("layers", []interface{}{})
	for i, l := range m.Layers {
		prefix := fmt.Sprintf("layers.%d.", i)
		set(prefix+"type", l.Kind())
		set(prefix+"name", l.LayerName())
		set(prefix+"visible", l.Visible())
		if len(l.LayerProperties()) > 0 {
			set(prefix+"properties", map[string]interface{}(l.LayerProperties()))
		}

		switch layer := l.(type) {
		case *tilemap.TileLayer:
			set(prefix+"opacity", layer.Opacity)
			set(prefix+"width", layer.Width)
			set(prefix+"height", layer.Height)
			set(prefix+"data", layer.Tiles)
		case *tilemap.ObjectLayer:
			set(prefix+"opacity", layer.Opacity)
			set(prefix+"objects", []interface{}{})
			for j, obj := range layer.Objects {
				op := fmt.Sprintf("%sobjects.%d.", prefix, j)
				set(op+"id", obj.ID)
				set(op+"name", obj.Name)
				if obj.Class != "" {
					set(op+"class", obj.Class)
				}
				set(op+"shape", string(obj.Shape))
				set(op+"x", obj.X)
				set(op+"y", obj.Y)
				set(op+"width", obj.Width)
				set(op+"height", obj.Height)
				if len(obj.Polygon) > 0 {
					points := make([]interface{}, len(obj.Polygon))
					for k, p := range obj.Polygon {
						points[k] = map[string]interface{}{"x": p.X, "y": p.Y}
					}
					set(op+"polygon", points)
				}
				if len(obj.Properties) > 0 {
					set(op+"properties", map[string]interface{}(obj.Properties))
				}
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to encode map: %w", err)
	}

	if opts&format.WriteMinimized != 0 {
		return pretty.Ugly(doc), nil
	}
	return pretty.Pretty(doc), nil
}
