// Package tilemap defines the in-memory document model for tile maps.
//
// A Map is a grid of tiles organized into layers. Tile layers store global
// tile IDs (GIDs) that reference tiles in one of the map's tilesets; object
// layers store free-positioned objects. GID 0 always means "no tile".
//
// The model is a plain value tree: it carries no I/O. Reading and writing
// maps is the job of the format packages (internal/format and its
// subpackages), which translate between files and this model.
package tilemap
