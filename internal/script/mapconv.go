package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mapstorm/internal/tilemap"
)

// Map table schema used on the Lua side:
//
//	{
//	  width = 4, height = 3, tile_width = 16, tile_height = 16,
//	  orientation = "orthogonal",
//	  properties = { ... },
//	  tilesets = { { name, first_gid, tile_width, tile_height,
//	                 tile_count, columns, image, properties } },
//	  layers = {
//	    { type = "tilelayer", name, visible, opacity, width, height,
//	      tiles = {gid...}, properties },
//	    { type = "objectlayer", name, visible, opacity, properties,
//	      objects = { { id, name, class, shape, x, y, width, height,
//	                    polygon = { {x,y}... }, properties } } },
//	  },
//	}
//
// MapToLua and MapFromLua are exact inverses over this schema.

// MapToLua marshals a map into a Lua table.
func MapToLua(L *lua.LState, m *tilemap.Map) *lua.LTable {
	b := NewBridge(L)

	t := L.NewTable()
	t.RawSetString("width", lua.LNumber(m.Width))
	t.RawSetString("height", lua.LNumber(m.Height))
	t.RawSetString("tile_width", lua.LNumber(m.TileWidth))
	t.RawSetString("tile_height", lua.LNumber(m.TileHeight))
	t.RawSetString("orientation", lua.LString(m.Orientation.String()))
	t.RawSetString("properties", propertiesToLua(b, m.Properties))

	tilesets := L.NewTable()
	for i, ts := range m.Tilesets {
		tilesets.RawSetInt(i+1, tilesetToLua(b, ts))
	}
	t.RawSetString("tilesets", tilesets)

	layers := L.NewTable()
	for i, l := range m.Layers {
		layers.RawSetInt(i+1, layerToLua(b, l))
	}
	t.RawSetString("layers", layers)

	return t
}

func propertiesToLua(b *Bridge, p tilemap.Properties) *lua.LTable {
	t := b.L.NewTable()
	for k, v := range p {
		t.RawSetString(k, b.ToLua(v))
	}
	return t
}

func tilesetToLua(b *Bridge, ts *tilemap.Tileset) *lua.LTable {
	t := b.L.NewTable()
	t.RawSetString("name", lua.LString(ts.Name))
	t.RawSetString("first_gid", lua.LNumber(ts.FirstGID))
	t.RawSetString("tile_width", lua.LNumber(ts.TileWidth))
	t.RawSetString("tile_height", lua.LNumber(ts.TileHeight))
	t.RawSetString("tile_count", lua.LNumber(ts.TileCount))
	t.RawSetString("columns", lua.LNumber(ts.Columns))
	t.RawSetString("image", lua.LString(ts.Image))
	t.RawSetString("properties", propertiesToLua(b, ts.Properties))
	return t
}

func layerToLua(b *Bridge, l tilemap.Layer) *lua.LTable {
	t := b.L.NewTable()
	t.RawSetString("type", lua.LString(l.Kind()))
	t.RawSetString("name", lua.LString(l.LayerName()))
	t.RawSetString("visible", lua.LBool(l.Visible()))
	t.RawSetString("properties", propertiesToLua(b, l.LayerProperties()))

	switch layer := l.(type) {
	case *tilemap.TileLayer:
		t.RawSetString("opacity", lua.LNumber(layer.Opacity))
		t.RawSetString("width", lua.LNumber(layer.Width))
		t.RawSetString("height", lua.LNumber(layer.Height))
		t.RawSetString("tiles", b.ToLua(layer.Tiles))
	case *tilemap.ObjectLayer:
		t.RawSetString("opacity", lua.LNumber(layer.Opacity))
		objects := b.L.NewTable()
		for i, obj := range layer.Objects {
			objects.RawSetInt(i+1, objectToLua(b, obj))
		}
		t.RawSetString("objects", objects)
	}
	return t
}

func objectToLua(b *Bridge, obj *tilemap.Object) *lua.LTable {
	t := b.L.NewTable()
	t.RawSetString("id", lua.LNumber(obj.ID))
	t.RawSetString("name", lua.LString(obj.Name))
	t.RawSetString("class", lua.LString(obj.Class))
	t.RawSetString("shape", lua.LString(string(obj.Shape)))
	t.RawSetString("x", lua.LNumber(obj.X))
	t.RawSetString("y", lua.LNumber(obj.Y))
	t.RawSetString("width", lua.LNumber(obj.Width))
	t.RawSetString("height", lua.LNumber(obj.Height))
	if obj.Shape == tilemap.ShapePolygon {
		poly := b.L.NewTable()
		for i, p := range obj.Polygon {
			pt := b.L.NewTable()
			pt.RawSetString("x", lua.LNumber(p.X))
			pt.RawSetString("y", lua.LNumber(p.Y))
			poly.RawSetInt(i+1, pt)
		}
		t.RawSetString("polygon", poly)
	}
	t.RawSetString("properties", propertiesToLua(b, obj.Properties))
	return t
}

// MapFromLua unmarshals a Lua table into a map. The table must follow
// the schema documented above; violations produce errors naming the
// offending field.
func MapFromLua(L *lua.LState, t *lua.LTable) (*tilemap.Map, error) {
	b := NewBridge(L)

	width, ok := b.IntField(t, "width")
	if !ok {
		return nil, fmt.Errorf("map table: missing or non-number 'width'")
	}
	height, ok := b.IntField(t, "height")
	if !ok {
		return nil, fmt.Errorf("map table: missing or non-number 'height'")
	}
	tileWidth, ok := b.IntField(t, "tile_width")
	if !ok {
		return nil, fmt.Errorf("map table: missing or non-number 'tile_width'")
	}
	tileHeight, ok := b.IntField(t, "tile_height")
	if !ok {
		return nil, fmt.Errorf("map table: missing or non-number 'tile_height'")
	}

	m := tilemap.NewMap(width, height, tileWidth, tileHeight)

	if s, ok := b.StringField(t, "orientation"); ok {
		orient, err := tilemap.ParseOrientation(s)
		if err != nil {
			return nil, fmt.Errorf("map table: %w", err)
		}
		m.Orientation = orient
	}

	if props, ok := b.TableField(t, "properties"); ok {
		p, err := propertiesFromLua(b, props)
		if err != nil {
			return nil, fmt.Errorf("map table: %w", err)
		}
		m.Properties = p
	}

	if tilesets, ok := b.TableField(t, "tilesets"); ok {
		var convErr error
		tilesets.ForEach(func(k, v lua.LValue) {
			if convErr != nil {
				return
			}
			entry, ok := v.(*lua.LTable)
			if !ok {
				convErr = fmt.Errorf("tilesets[%s]: expected table, got %s", k.String(), v.Type())
				return
			}
			ts, err := tilesetFromLua(b, entry)
			if err != nil {
				convErr = fmt.Errorf("tilesets[%s]: %w", k.String(), err)
				return
			}
			m.AddTileset(ts)
		})
		if convErr != nil {
			return nil, convErr
		}
	}

	if layers, ok := b.TableField(t, "layers"); ok {
		var convErr error
		layers.ForEach(func(k, v lua.LValue) {
			if convErr != nil {
				return
			}
			entry, ok := v.(*lua.LTable)
			if !ok {
				convErr = fmt.Errorf("layers[%s]: expected table, got %s", k.String(), v.Type())
				return
			}
			layer, err := layerFromLua(b, entry)
			if err != nil {
				convErr = fmt.Errorf("layers[%s]: %w", k.String(), err)
				return
			}
			m.AddLayer(layer)
		})
		if convErr != nil {
			return nil, convErr
		}
	}

	return m, nil
}

func propertiesFromLua(b *Bridge, t *lua.LTable) (tilemap.Properties, error) {
	p := tilemap.NewProperties()
	var convErr error
	t.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		key, ok := k.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("properties: non-string key %s", k.String())
			return
		}
		switch val := b.ToGo(v).(type) {
		case bool, int64, float64, string:
			p[string(key)] = val
		default:
			convErr = fmt.Errorf("properties[%s]: unsupported value type %s", key, v.Type())
		}
	})
	if convErr != nil {
		return nil, convErr
	}
	return p, nil
}

func tilesetFromLua(b *Bridge, t *lua.LTable) (*tilemap.Tileset, error) {
	name, ok := b.StringField(t, "name")
	if !ok {
		return nil, fmt.Errorf("missing or non-string 'name'")
	}
	firstGID, ok := b.IntField(t, "first_gid")
	if !ok || firstGID < 1 {
		return nil, fmt.Errorf("tileset %q: 'first_gid' must be a number >= 1", name)
	}

	ts := &tilemap.Tileset{
		Name:       name,
		FirstGID:   uint32(firstGID),
		Properties: tilemap.NewProperties(),
	}
	ts.TileWidth, _ = b.IntField(t, "tile_width")
	ts.TileHeight, _ = b.IntField(t, "tile_height")
	ts.TileCount, _ = b.IntField(t, "tile_count")
	ts.Columns, _ = b.IntField(t, "columns")
	ts.Image, _ = b.StringField(t, "image")

	if props, ok := b.TableField(t, "properties"); ok {
		p, err := propertiesFromLua(b, props)
		if err != nil {
			return nil, fmt.Errorf("tileset %q: %w", name, err)
		}
		ts.Properties = p
	}
	return ts, nil
}

func layerFromLua(b *Bridge, t *lua.LTable) (tilemap.Layer, error) {
	kind, ok := b.StringField(t, "type")
	if !ok {
		return nil, fmt.Errorf("missing or non-string 'type'")
	}
	name, _ := b.StringField(t, "name")

	switch kind {
	case tilemap.KindTileLayer:
		return tileLayerFromLua(b, t, name)
	case tilemap.KindObjectLayer:
		return objectLayerFromLua(b, t, name)
	default:
		return nil, fmt.Errorf("unknown layer type %q", kind)
	}
}

func tileLayerFromLua(b *Bridge, t *lua.LTable, name string) (*tilemap.TileLayer, error) {
	width, _ := b.IntField(t, "width")
	height, _ := b.IntField(t, "height")

	tiles, ok := b.TableField(t, "tiles")
	if !ok {
		return nil, fmt.Errorf("tile layer %q: missing 'tiles' array", name)
	}

	var gids []uint32
	var convErr error
	n := tiles.Len()
	for i := 1; i <= n; i++ {
		v := tiles.RawGetInt(i)
		num, ok := v.(lua.LNumber)
		if !ok || num < 0 {
			convErr = fmt.Errorf("tile layer %q: tiles[%d] is not a valid GID", name, i)
			break
		}
		gids = append(gids, uint32(num))
	}
	if convErr != nil {
		return nil, convErr
	}

	// When the layer omits its size, infer a single row.
	if width <= 0 && height <= 0 {
		width = len(gids)
		height = 1
		if len(gids) == 0 {
			width = 0
			height = 0
		}
	}
	if width*height != len(gids) {
		return nil, fmt.Errorf("tile layer %q: %d tiles for %dx%d grid", name, len(gids), width, height)
	}

	layer := tilemap.NewTileLayer(name, width, height)
	copy(layer.Tiles, gids)
	applyCommonLayerFields(b, t, &layer.Hidden, &layer.Opacity, &layer.Properties)
	return layer, nil
}

func objectLayerFromLua(b *Bridge, t *lua.LTable, name string) (*tilemap.ObjectLayer, error) {
	layer := tilemap.NewObjectLayer(name)
	applyCommonLayerFields(b, t, &layer.Hidden, &layer.Opacity, &layer.Properties)

	objects, ok := b.TableField(t, "objects")
	if !ok {
		return layer, nil
	}

	var convErr error
	objects.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		entry, ok := v.(*lua.LTable)
		if !ok {
			convErr = fmt.Errorf("object layer %q: objects[%s] is not a table", name, k.String())
			return
		}
		obj, err := objectFromLua(b, entry)
		if err != nil {
			convErr = fmt.Errorf("object layer %q: %w", name, err)
			return
		}
		layer.AddObject(obj)
	})
	if convErr != nil {
		return nil, convErr
	}
	return layer, nil
}

func applyCommonLayerFields(b *Bridge, t *lua.LTable, hidden *bool, opacity *float64, props *tilemap.Properties) {
	if v, ok := b.BoolField(t, "visible"); ok {
		*hidden = !v
	}
	if n, ok := t.RawGetString("opacity").(lua.LNumber); ok {
		*opacity = float64(n)
	}
	if pt, ok := b.TableField(t, "properties"); ok {
		if p, err := propertiesFromLua(b, pt); err == nil {
			*props = p
		}
	}
}

func objectFromLua(b *Bridge, t *lua.LTable) (*tilemap.Object, error) {
	obj := &tilemap.Object{
		Shape:      tilemap.ShapeRectangle,
		Properties: tilemap.NewProperties(),
	}

	obj.ID, _ = b.IntField(t, "id")
	obj.Name, _ = b.StringField(t, "name")
	obj.Class, _ = b.StringField(t, "class")

	if s, ok := b.StringField(t, "shape"); ok {
		switch tilemap.ObjectShape(s) {
		case tilemap.ShapeRectangle, tilemap.ShapeEllipse, tilemap.ShapePoint, tilemap.ShapePolygon:
			obj.Shape = tilemap.ObjectShape(s)
		default:
			return nil, fmt.Errorf("object %q: unknown shape %q", obj.Name, s)
		}
	}

	obj.X = floatField(t, "x")
	obj.Y = floatField(t, "y")
	obj.Width = floatField(t, "width")
	obj.Height = floatField(t, "height")

	if poly, ok := b.TableField(t, "polygon"); ok {
		n := poly.Len()
		for i := 1; i <= n; i++ {
			pt, ok := poly.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("object %q: polygon[%d] is not a table", obj.Name, i)
			}
			obj.Polygon = append(obj.Polygon, tilemap.Point{
				X: floatField(pt, "x"),
				Y: floatField(pt, "y"),
			})
		}
	}

	if props, ok := b.TableField(t, "properties"); ok {
		p, err := propertiesFromLua(b, props)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", obj.Name, err)
		}
		obj.Properties = p
	}

	return obj, nil
}

func floatField(t *lua.LTable, key string) float64 {
	if n, ok := t.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}
