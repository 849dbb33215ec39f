package tilemap

// Layer is a single map layer. Concrete kinds are TileLayer and ObjectLayer.
type Layer interface {
	// LayerName returns the layer's display name.
	LayerName() string

	// Kind returns the layer kind ("tilelayer" or "objectlayer").
	Kind() string

	// Visible reports whether the layer should be drawn.
	Visible() bool

	// LayerProperties returns the layer's custom properties.
	LayerProperties() Properties

	// CloneLayer returns a deep copy of the layer.
	CloneLayer() Layer
}

// Layer kind names used by format codecs.
const (
	KindTileLayer   = "tilelayer"
	KindObjectLayer = "objectlayer"
)

// baseLayer carries the fields shared by all layer kinds.
type baseLayer struct {
	Name       string
	Hidden     bool
	Opacity    float64
	Properties Properties
}

// TileLayer is a fixed-size grid of global tile IDs.
type TileLayer struct {
	baseLayer

	// Width and Height in tiles. Must match the owning map.
	Width  int
	Height int

	// Tiles in row-major order, length Width*Height. 0 means empty.
	Tiles []uint32
}

// NewTileLayer creates an empty tile layer of the given size.
func NewTileLayer(name string, width, height int) *TileLayer {
	return &TileLayer{
		baseLayer: baseLayer{Name: name, Opacity: 1, Properties: NewProperties()},
		Width:     width,
		Height:    height,
		Tiles:     make([]uint32, width*height),
	}
}

// LayerName returns the layer name.
func (t *TileLayer) LayerName() string { return t.Name }

// Kind returns KindTileLayer.
func (t *TileLayer) Kind() string { return KindTileLayer }

// Visible reports whether the layer should be drawn.
func (t *TileLayer) Visible() bool { return !t.Hidden }

// LayerProperties returns the layer's custom properties.
func (t *TileLayer) LayerProperties() Properties { return t.Properties }

// TileAt returns the GID at the given tile coordinates.
// Out-of-range coordinates return 0.
func (t *TileLayer) TileAt(x, y int) uint32 {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return 0
	}
	return t.Tiles[y*t.Width+x]
}

// SetTile sets the GID at the given tile coordinates.
// Out-of-range coordinates are ignored.
func (t *TileLayer) SetTile(x, y int, gid uint32) {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return
	}
	t.Tiles[y*t.Width+x] = gid
}

// CloneLayer returns a deep copy of the tile layer.
func (t *TileLayer) CloneLayer() Layer {
	clone := *t
	clone.Properties = t.Properties.Clone()
	clone.Tiles = make([]uint32, len(t.Tiles))
	copy(clone.Tiles, t.Tiles)
	return &clone
}

// ObjectShape is the geometric kind of a map object.
type ObjectShape string

// Object shapes.
const (
	ShapeRectangle ObjectShape = "rectangle"
	ShapeEllipse   ObjectShape = "ellipse"
	ShapePoint     ObjectShape = "point"
	ShapePolygon   ObjectShape = "polygon"
)

// Point is a position in pixels.
type Point struct {
	X float64
	Y float64
}

// Object is a free-positioned element on an object layer.
type Object struct {
	ID     int
	Name   string
	Class  string
	Shape  ObjectShape
	X      float64
	Y      float64
	Width  float64
	Height float64

	// Polygon points relative to (X, Y). Only set for ShapePolygon.
	Polygon []Point

	Properties Properties
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	clone := *o
	clone.Properties = o.Properties.Clone()
	if o.Polygon != nil {
		clone.Polygon = make([]Point, len(o.Polygon))
		copy(clone.Polygon, o.Polygon)
	}
	return &clone
}

// ObjectLayer is a collection of free-positioned objects.
type ObjectLayer struct {
	baseLayer

	Objects []*Object

	// nextID is the next object ID to assign.
	nextID int
}

// NewObjectLayer creates an empty object layer.
func NewObjectLayer(name string) *ObjectLayer {
	return &ObjectLayer{
		baseLayer: baseLayer{Name: name, Opacity: 1, Properties: NewProperties()},
		nextID:    1,
	}
}

// LayerName returns the layer name.
func (o *ObjectLayer) LayerName() string { return o.Name }

// Kind returns KindObjectLayer.
func (o *ObjectLayer) Kind() string { return KindObjectLayer }

// Visible reports whether the layer should be drawn.
func (o *ObjectLayer) Visible() bool { return !o.Hidden }

// LayerProperties returns the layer's custom properties.
func (o *ObjectLayer) LayerProperties() Properties { return o.Properties }

// AddObject appends an object, assigning an ID if it has none.
func (o *ObjectLayer) AddObject(obj *Object) {
	if obj.ID == 0 {
		obj.ID = o.nextID
	}
	if obj.ID >= o.nextID {
		o.nextID = obj.ID + 1
	}
	o.Objects = append(o.Objects, obj)
}

// ObjectByID returns the object with the given ID.
func (o *ObjectLayer) ObjectByID(id int) (*Object, bool) {
	for _, obj := range o.Objects {
		if obj.ID == id {
			return obj, true
		}
	}
	return nil, false
}

// CloneLayer returns a deep copy of the object layer.
func (o *ObjectLayer) CloneLayer() Layer {
	clone := *o
	clone.Properties = o.Properties.Clone()
	if o.Objects != nil {
		clone.Objects = make([]*Object, len(o.Objects))
		for i, obj := range o.Objects {
			clone.Objects[i] = obj.Clone()
		}
	}
	return &clone
}
