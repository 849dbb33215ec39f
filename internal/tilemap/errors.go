package tilemap

import "errors"

// Model validation errors.
var (
	// ErrInvalidSize is returned when a map has non-positive dimensions.
	ErrInvalidSize = errors.New("map size must be positive")

	// ErrInvalidTileSize is returned when a map has non-positive tile dimensions.
	ErrInvalidTileSize = errors.New("tile size must be positive")

	// ErrInvalidOrientation is returned for an unknown orientation value.
	ErrInvalidOrientation = errors.New("invalid orientation")

	// ErrLayerSizeMismatch is returned when a tile layer's grid does not
	// match the map dimensions.
	ErrLayerSizeMismatch = errors.New("tile layer size does not match map size")

	// ErrDuplicateLayerName is returned when two layers share a name.
	ErrDuplicateLayerName = errors.New("duplicate layer name")

	// ErrTilesetOverlap is returned when tileset GID ranges overlap.
	ErrTilesetOverlap = errors.New("tileset GID ranges overlap")

	// ErrUnknownGID is returned when a GID resolves to no tileset.
	ErrUnknownGID = errors.New("GID does not belong to any tileset")
)
