package tiles

import (
	"fmt"
	"math"
)

// Levels are the zoom levels at which bounds are computed.
var Levels = [...]int{5, 7, 8, 12}

// MaxLatitude is the Web-Mercator latitude limit in degrees.
const MaxLatitude = 85.0511287798

// Viewport is a camera's geographic extent in degrees.
type Viewport struct {
	North float64
	South float64
	East  float64
	West  float64
}

// TileRect is an inclusive range of tile indices at one level.
type TileRect struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// LevelBounds maps "level{L}" labels to tile rectangles.
type LevelBounds map[string]TileRect

// LevelKey returns the map label for a level (e.g. "level7").
func LevelKey(level int) string {
	return fmt.Sprintf("level%d", level)
}

// Level returns the rectangle computed for a level.
func (b LevelBounds) Level(level int) (TileRect, bool) {
	r, ok := b[LevelKey(level)]
	return r, ok
}

// Encode computes padded tile bounds for every level in Levels.
// It is pure: the same viewport and zoom always produce the same bounds.
func Encode(v Viewport, zoom float64) LevelBounds {
	padding := Padding(zoom)
	bounds := make(LevelBounds, len(Levels))

	for _, level := range Levels {
		maxTile := 1<<level - 1

		west := TileX(v.West, level)
		east := TileX(v.East, level)
		north := TileY(v.North, level)
		south := TileY(v.South, level)

		// North maps to the smaller y index. West/east are not sorted,
		// so an antimeridian-crossing viewport stays inverted.
		bounds[LevelKey(level)] = TileRect{
			MinX: max(0, west-padding),
			MaxX: min(maxTile, east+padding),
			MinY: max(0, north-padding),
			MaxY: min(maxTile, south+padding),
		}
	}

	return bounds
}

// Padding returns the tile margin for the camera zoom.
func Padding(zoom float64) int {
	padding := 2
	if zoom > 12 {
		padding = 1
	}
	if zoom > 13 {
		padding = 0
	}
	return padding
}

// TileX projects a longitude to a tile column at level.
func TileX(lon float64, level int) int {
	n := math.Exp2(float64(level))
	return clampTile(math.Floor((lon+180)/360*n), level)
}

// TileY projects a latitude to a tile row at level.
func TileY(lat float64, level int) int {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	rad := lat * math.Pi / 180
	n := math.Exp2(float64(level))
	y := (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * n
	return clampTile(math.Floor(y), level)
}

func clampTile(v float64, level int) int {
	maxTile := float64(int(1)<<level - 1)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > maxTile {
		return int(maxTile)
	}
	return int(v)
}
