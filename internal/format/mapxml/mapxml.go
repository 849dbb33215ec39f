// Package mapxml implements the native XML map format.
//
// The document is element-per-concept: a <map> root with <tileset>,
// <layer> and <objectgroup> children. Tile data is CSV-encoded inside
// <data>, one row per line. Custom properties are <property> elements
// with an explicit type attribute.
package mapxml

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/dshills/mapstorm/internal/format"
	"github.com/dshills/mapstorm/internal/savefile"
	"github.com/dshills/mapstorm/internal/tilemap"
)

// Version is the document version this codec writes.
const Version = "1"

// Format reads and writes the native XML map document.
type Format struct {
	mu        sync.Mutex
	lastError string
}

// New creates the XML format.
func New() *Format {
	return &Format{}
}

// Name returns "xml".
func (f *Format) Name() string { return "xml" }

// NameFilter returns the file-dialog filter.
func (f *Format) NameFilter() string { return "Mapstorm XML map (*.xml)" }

// Capabilities returns ReadWrite.
func (f *Format) Capabilities() format.Capability { return format.ReadWrite }

// SupportsFile reports whether the path has an .xml extension.
func (f *Format) SupportsFile(path string) bool {
	return format.ExtensionMatches(path, "xml")
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

// Read loads a map from an XML file.
func (f *Format) Read(path string) (*tilemap.Map, error) {
	f.clear()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, f.fail(fmt.Errorf("failed to read %s: %w", path, err))
	}

	m, err := Decode(data)
	if err != nil {
		return nil, f.fail(err)
	}
	return m, nil
}

// Write saves a map to an XML file.
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

// Decode parses an XML map document.
func Decode(data []byte) (*tilemap.Map, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("invalid XML: %w", err)
	}

	root := doc.SelectElement("map")
	if root == nil {
		return nil, fmt.Errorf("map document: missing <map> root element")
	}

	width, err := intAttr(root, "width")
	if err != nil {
		return nil, err
	}
	height, err := intAttr(root, "height")
	if err != nil {
		return nil, err
	}
	tileWidth, err := intAttr(root, "tilewidth")
	if err != nil {
		return nil, err
	}
	tileHeight, err := intAttr(root, "tileheight")
	if err != nil {
		return nil, err
	}

	m := tilemap.NewMap(width, height, tileWidth, tileHeight)

	orient, err := tilemap.ParseOrientation(root.SelectAttrValue("orientation", ""))
	if err != nil {
		return nil, fmt.Errorf("map document: %w", err)
	}
	m.Orientation = orient

	if props := root.SelectElement("properties"); props != nil {
		p, err := decodeProperties(props)
		if err != nil {
			return nil, err
		}
		m.Properties = p
	}

	for _, el := range root.SelectElements("tileset") {
		ts, err := decodeTileset(el)
		if err != nil {
			return nil, err
		}
		m.AddTileset(ts)
	}

	// Layers keep document order regardless of element kind.
	for _, el := range root.ChildElements() {
		switch el.Tag {
		case "layer":
			layer, err := decodeTileLayer(el)
			if err != nil {
				return nil, err
			}
			m.AddLayer(layer)
		case "objectgroup":
			layer, err := decodeObjectLayer(el)
			if err != nil {
				return nil, err
			}
			m.AddLayer(layer)
		}
	}

	return m, nil
}

func intAttr(el *etree.Element, name string) (int, error) {
	raw := el.SelectAttrValue(name, "")
	if raw == "" {
		return 0, fmt.Errorf("<%s>: missing %q attribute", el.Tag, name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("<%s>: attribute %q: %w", el.Tag, name, err)
	}
	return n, nil
}

func decodeProperties(el *etree.Element) (tilemap.Properties, error) {
	p := tilemap.NewProperties()
	for _, prop := range el.SelectElements("property") {
		name := prop.SelectAttrValue("name", "")
		if name == "" {
			return nil, fmt.Errorf("<property>: missing name attribute")
		}
		value := prop.SelectAttrValue("value", "")
		switch kind := prop.SelectAttrValue("type", "string"); kind {
		case "string":
			p[name] = value
		case "bool":
			p[name] = value == "true"
		case "int":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			p[name] = n
		case "float":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			p[name] = f
		default:
			return nil, fmt.Errorf("property %q: unknown type %q", name, kind)
		}
	}
	return p, nil
}

func decodeTileset(el *etree.Element) (*tilemap.Tileset, error) {
	name := el.SelectAttrValue("name", "")
	firstGID, err := intAttr(el, "firstgid")
	if err != nil {
		return nil, err
	}
	if firstGID < 1 {
		return nil, fmt.Errorf("tileset %q: firstgid must be >= 1", name)
	}

	ts := &tilemap.Tileset{
		Name:       name,
		FirstGID:   uint32(firstGID),
		Image:      el.SelectAttrValue("image", ""),
		Properties: tilemap.NewProperties(),
	}
	ts.TileWidth, _ = strconv.Atoi(el.SelectAttrValue("tilewidth", "0"))
	ts.TileHeight, _ = strconv.Atoi(el.SelectAttrValue("tileheight", "0"))
	ts.TileCount, _ = strconv.Atoi(el.SelectAttrValue("tilecount", "0"))
	ts.Columns, _ = strconv.Atoi(el.SelectAttrValue("columns", "0"))

	if props := el.SelectElement("properties"); props != nil {
		p, err := decodeProperties(props)
		if err != nil {
			return nil, fmt.Errorf("tileset %q: %w", name, err)
		}
		ts.Properties = p
	}
	return ts, nil
}

func decodeTileLayer(el *etree.Element) (*tilemap.TileLayer, error) {
	name := el.SelectAttrValue("name", "")
	width, err := intAttr(el, "width")
	if err != nil {
		return nil, err
	}
	height, err := intAttr(el, "height")
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || width > math.MaxInt/height {
		return nil, fmt.Errorf("layer %q: invalid size %dx%d", name, width, height)
	}

	layer := tilemap.NewTileLayer(name, width, height)
	decodeLayerCommon(el, &layer.Hidden, &layer.Opacity, &layer.Properties)

	data := el.SelectElement("data")
	if data == nil {
		return nil, fmt.Errorf("layer %q: missing <data>", name)
	}
	if enc := data.SelectAttrValue("encoding", "csv"); enc != "csv" {
		return nil, fmt.Errorf("layer %q: unsupported encoding %q", name, enc)
	}

	gids, err := parseCSV(data.Text())
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	if len(gids) != width*height {
		return nil, fmt.Errorf("layer %q: %d tiles for %dx%d grid", name, len(gids), width, height)
	}
	copy(layer.Tiles, gids)
	return layer, nil
}

func decodeObjectLayer(el *etree.Element) (*tilemap.ObjectLayer, error) {
	name := el.SelectAttrValue("name", "")
	layer := tilemap.NewObjectLayer(name)
	decodeLayerCommon(el, &layer.Hidden, &layer.Opacity, &layer.Properties)

	for _, oe := range el.SelectElements("object") {
		obj, err := decodeObject(oe)
		if err != nil {
			return nil, fmt.Errorf("objectgroup %q: %w", name, err)
		}
		layer.AddObject(obj)
	}
	return layer, nil
}

func decodeLayerCommon(el *etree.Element, hidden *bool, opacity *float64, props *tilemap.Properties) {
	if v := el.SelectAttrValue("visible", "1"); v == "0" {
		*hidden = true
	}
	if v := el.SelectAttrValue("opacity", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*opacity = f
		}
	}
	if pe := el.SelectElement("properties"); pe != nil {
		if p, err := decodeProperties(pe); err == nil {
			*props = p
		}
	}
}

func decodeObject(el *etree.Element) (*tilemap.Object, error) {
	obj := &tilemap.Object{
		Name:       el.SelectAttrValue("name", ""),
		Class:      el.SelectAttrValue("class", ""),
		Shape:      tilemap.ShapeRectangle,
		Properties: tilemap.NewProperties(),
	}
	obj.ID, _ = strconv.Atoi(el.SelectAttrValue("id", "0"))
	obj.X, _ = strconv.ParseFloat(el.SelectAttrValue("x", "0"), 64)
	obj.Y, _ = strconv.ParseFloat(el.SelectAttrValue("y", "0"), 64)
	obj.Width, _ = strconv.ParseFloat(el.SelectAttrValue("width", "0"), 64)
	obj.Height, _ = strconv.ParseFloat(el.SelectAttrValue("height", "0"), 64)

	if s := el.SelectAttrValue("shape", ""); s != "" {
		shape := tilemap.ObjectShape(s)
		switch shape {
		case tilemap.ShapeRectangle, tilemap.ShapeEllipse, tilemap.ShapePoint, tilemap.ShapePolygon:
			obj.Shape = shape
		default:
			return nil, fmt.Errorf("object %q: unknown shape %q", obj.Name, s)
		}
	}

	if poly := el.SelectElement("polygon"); poly != nil {
		points, err := parsePoints(poly.SelectAttrValue("points", ""))
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", obj.Name, err)
		}
		obj.Polygon = points
	}

	if props := el.SelectElement("properties"); props != nil {
		p, err := decodeProperties(props)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", obj.Name, err)
		}
		obj.Properties = p
	}
	return obj, nil
}

// parseCSV parses comma/newline separated GIDs.
func parseCSV(text string) ([]uint32, error) {
	var gids []uint32
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	}) {
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid GID %q", field)
		}
		gids = append(gids, uint32(n))
	}
	return gids, nil
}

// parsePoints parses "x,y x,y ..." polygon point lists.
func parsePoints(text string) ([]tilemap.Point, error) {
	var points []tilemap.Point
	for _, pair := range strings.Fields(text) {
		xy := strings.SplitN(pair, ",", 2)
		if len(xy) != 2 {
			return nil, fmt.Errorf("invalid point %q", pair)
		}
		x, errX := strconv.ParseFloat(xy[0], 64)
		y, errY := strconv.ParseFloat(xy[1], 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("invalid point %q", pair)
		}
		points = append(points, tilemap.Point{X: x, Y: y})
	}
	return points, nil
}

// Encode serializes a map to the XML document.
func Encode(m *tilemap.Map, opts format.Options) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("map")
	root.CreateAttr("version", Version)
	root.CreateAttr("orientation", m.Orientation.String())
	root.CreateAttr("width", strconv.Itoa(m.Width))
	root.CreateAttr("height", strconv.Itoa(m.Height))
	root.CreateAttr("tilewidth", strconv.Itoa(m.TileWidth))
	root.CreateAttr("tileheight", strconv.Itoa(m.TileHeight))

	encodeProperties(root, m.Properties)

	for _, ts := range m.Tilesets {
		el := root.CreateElement("tileset")
		el.CreateAttr("name", ts.Name)
		el.CreateAttr("firstgid", strconv.FormatUint(uint64(ts.FirstGID), 10))
		el.CreateAttr("tilewidth", strconv.Itoa(ts.TileWidth))
		el.CreateAttr("tileheight", strconv.Itoa(ts.TileHeight))
		el.CreateAttr("tilecount", strconv.Itoa(ts.TileCount))
		el.CreateAttr("columns", strconv.Itoa(ts.Columns))
		if ts.Image != "" {
			el.CreateAttr("image", ts.Image)
		}
		encodeProperties(el, ts.Properties)
	}

	for _, l := range m.Layers {
		switch layer := l.(type) {
		case *tilemap.TileLayer:
			el := root.CreateElement("layer")
			el.CreateAttr("name", layer.Name)
			el.CreateAttr("width", strconv.Itoa(layer.Width))
			el.CreateAttr("height", strconv.Itoa(layer.Height))
			encodeLayerCommon(el, l)
			data := el.CreateElement("data")
			data.CreateAttr("encoding", "csv")
			data.SetText(encodeCSV(layer))

		case *tilemap.ObjectLayer:
			el := root.CreateElement("objectgroup")
			el.CreateAttr("name", layer.Name)
			encodeLayerCommon(el, l)
			for _, obj := range layer.Objects {
				oe := el.CreateElement("object")
				oe.CreateAttr("id", strconv.Itoa(obj.ID))
				oe.CreateAttr("name", obj.Name)
				if obj.Class != "" {
					oe.CreateAttr("class", obj.Class)
				}
				oe.CreateAttr("shape", string(obj.Shape))
				oe.CreateAttr("x", formatFloat(obj.X))
				oe.CreateAttr("y", formatFloat(obj.Y))
				oe.CreateAttr("width", formatFloat(obj.Width))
				oe.CreateAttr("height", formatFloat(obj.Height))
				if len(obj.Polygon) > 0 {
					pairs := make([]string, len(obj.Polygon))
					for i, p := range obj.Polygon {
						pairs[i] = formatFloat(p.X) + "," + formatFloat(p.Y)
					}
					oe.CreateElement("polygon").CreateAttr("points", strings.Join(pairs, " "))
				}
				encodeProperties(oe, obj.Properties)
			}
		}
	}

	if opts&format.WriteMinimized == 0 {
		doc.Indent(2)
	}

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode map: %w", err)
	}
	return data, nil
}

func encodeLayerCommon(el *etree.Element, l tilemap.Layer) {
	if !l.Visible() {
		el.CreateAttr("visible", "0")
	}
}

func encodeProperties(parent *etree.Element, props tilemap.Properties) {
	if len(props) == 0 {
		return
	}
	el := parent.CreateElement("properties")

	// Deterministic output.
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		pe := el.CreateElement("property")
		pe.CreateAttr("name", k)
		switch v := props[k].(type) {
		case bool:
			pe.CreateAttr("type", "bool")
			pe.CreateAttr("value", strconv.FormatBool(v))
		case int64:
			pe.CreateAttr("type", "int")
			pe.CreateAttr("value", strconv.FormatInt(v, 10))
		case float64:
			pe.CreateAttr("type", "float")
			pe.CreateAttr("value", formatFloat(v))
		default:
			pe.CreateAttr("type", "string")
			pe.CreateAttr("value", fmt.Sprintf("%v", v))
		}
	}
}

// encodeCSV renders tile data one row per line.
func encodeCSV(layer *tilemap.TileLayer) string {
	var sb strings.Builder
	sb.WriteString("\n")
	for y := 0; y < layer.Height; y++ {
		for x := 0; x < layer.Width; x++ {
			if x > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(strconv.FormatUint(uint64(layer.TileAt(x, y)), 10))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
