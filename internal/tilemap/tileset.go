package tilemap

// Tileset describes a block of tiles shared by a map's tile layers.
// Tiles are addressed by global IDs: a tileset owns the GID range
// [FirstGID, FirstGID+TileCount).
type Tileset struct {
	// Name is the tileset's display name.
	Name string

	// FirstGID is the first global tile ID in this tileset.
	FirstGID uint32

	// TileWidth and TileHeight are the tile dimensions in pixels.
	TileWidth  int
	TileHeight int

	// TileCount is the number of tiles in the set.
	TileCount int

	// Columns is the number of tile columns in the source image.
	Columns int

	// Image is the path to the tileset image, relative to the map file.
	Image string

	Properties Properties
}

// Contains reports whether the GID falls in this tileset's range.
func (t *Tileset) Contains(gid uint32) bool {
	return gid >= t.FirstGID && gid < t.FirstGID+uint32(t.TileCount)
}

// LocalID converts a global tile ID to an index within this tileset.
// The caller must ensure Contains(gid).
func (t *Tileset) LocalID(gid uint32) int {
	return int(gid - t.FirstGID)
}

// Clone returns a deep copy of the tileset.
func (t *Tileset) Clone() *Tileset {
	clone := *t
	clone.Properties = t.Properties.Clone()
	return &clone
}
