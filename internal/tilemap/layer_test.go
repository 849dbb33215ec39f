package tilemap

import "testing"

func TestTileLayerAccess(t *testing.T) {
	l := NewTileLayer("ground", 3, 2)

	l.SetTile(2, 1, 42)
	if got := l.TileAt(2, 1); got != 42 {
		t.Errorf("TileAt(2,1) = %d, want 42", got)
	}

	// Out-of-range access is a no-op / zero.
	l.SetTile(3, 0, 7)
	l.SetTile(-1, 0, 7)
	if got := l.TileAt(3, 0); got != 0 {
		t.Errorf("TileAt(3,0) = %d, want 0", got)
	}
	if got := l.TileAt(-1, -1); got != 0 {
		t.Errorf("TileAt(-1,-1) = %d, want 0", got)
	}
}

func TestTileLayerKind(t *testing.T) {
	l := NewTileLayer("ground", 1, 1)
	if l.Kind() != KindTileLayer {
		t.Errorf("Kind() = %q, want %q", l.Kind(), KindTileLayer)
	}
	if !l.Visible() {
		t.Error("new layer should be visible")
	}
}

func TestObjectLayerIDs(t *testing.T) {
	l := NewObjectLayer("spawns")

	a := &Object{Name: "a"}
	b := &Object{Name: "b"}
	l.AddObject(a)
	l.AddObject(b)

	if a.ID != 1 || b.ID != 2 {
		t.Errorf("assigned IDs = %d, %d, want 1, 2", a.ID, b.ID)
	}

	// Explicit IDs advance the counter.
	c := &Object{Name: "c", ID: 10}
	l.AddObject(c)
	d := &Object{Name: "d"}
	l.AddObject(d)
	if d.ID != 11 {
		t.Errorf("ID after explicit 10 = %d, want 11", d.ID)
	}

	if obj, ok := l.ObjectByID(10); !ok || obj.Name != "c" {
		t.Errorf("ObjectByID(10) = %v, %v", obj, ok)
	}
	if _, ok := l.ObjectByID(99); ok {
		t.Error("ObjectByID(99) should not be found")
	}
}

func TestObjectClone(t *testing.T) {
	obj := &Object{
		ID:         1,
		Name:       "zone",
		Shape:      ShapePolygon,
		Polygon:    []Point{{0, 0}, {10, 0}, {10, 10}},
		Properties: Properties{"danger": true},
	}

	clone := obj.Clone()
	clone.Polygon[0].X = 99
	clone.Properties["danger"] = false

	if obj.Polygon[0].X != 0 {
		t.Error("Clone() shares polygon points")
	}
	if obj.Properties["danger"] != true {
		t.Error("Clone() shares properties")
	}
}

func TestPropertiesAccessors(t *testing.T) {
	p := Properties{
		"name":  "cave",
		"depth": int64(3),
		"scale": 1.5,
		"dark":  true,
	}

	if s, ok := p.GetString("name"); !ok || s != "cave" {
		t.Errorf("GetString(name) = %q, %v", s, ok)
	}
	if n, ok := p.GetInt("depth"); !ok || n != 3 {
		t.Errorf("GetInt(depth) = %d, %v", n, ok)
	}
	if f, ok := p.GetFloat("scale"); !ok || f != 1.5 {
		t.Errorf("GetFloat(scale) = %f, %v", f, ok)
	}
	if f, ok := p.GetFloat("depth"); !ok || f != 3 {
		t.Errorf("GetFloat(depth) = %f, %v (integers should widen)", f, ok)
	}
	if b, ok := p.GetBool("dark"); !ok || !b {
		t.Errorf("GetBool(dark) = %v, %v", b, ok)
	}
	if _, ok := p.GetString("depth"); ok {
		t.Error("GetString(depth) should fail on int value")
	}
	if _, ok := p.GetInt("missing"); ok {
		t.Error("GetInt(missing) should fail")
	}
}
