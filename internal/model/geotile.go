package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// GeoTile is a rectangular lat/lng bounding box used as a unit of search.
// Invariant: NorthLat > SouthLat and EastLng > WestLng (non-wrapping boxes).
type GeoTile struct {
	NorthLat float64 `json:"north_lat"`
	SouthLat float64 `json:"south_lat"`
	EastLng  float64 `json:"east_lng"`
	WestLng  float64 `json:"west_lng"`
}

// Valid reports whether the tile satisfies the box invariant.
func (t GeoTile) Valid() bool {
	return t.NorthLat > t.SouthLat && t.EastLng > t.WestLng
}

// LatSpan returns the tile height in degrees.
func (t GeoTile) LatSpan() float64 {
	return t.NorthLat - t.SouthLat
}

// LngSpan returns the tile width in degrees.
func (t GeoTile) LngSpan() float64 {
	return t.EastLng - t.WestLng
}

// MinSpan returns the smaller of the tile's two spans. Subdivision stops once
// MinSpan reaches the configured floor.
func (t GeoTile) MinSpan() float64 {
	return math.Min(t.LatSpan(), t.LngSpan())
}

// Bound returns the tile as an orb bound (lng/lat order).
func (t GeoTile) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{t.WestLng, t.SouthLat},
		Max: orb.Point{t.EastLng, t.NorthLat},
	}
}

// Contains reports whether the coordinate falls inside the tile.
func (t GeoTile) Contains(lat, lng float64) bool {
	return t.Bound().Contains(orb.Point{lng, lat})
}

// Subdivide splits the tile into 4 quadrants partitioning it exactly at the
// midpoint lines: NW, NE, SW, SE. Children share edges but no interior.
func (t GeoTile) Subdivide() [4]GeoTile {
	midLat := t.SouthLat + t.LatSpan()/2
	midLng := t.WestLng + t.LngSpan()/2
	return [4]GeoTile{
		{NorthLat: t.NorthLat, SouthLat: midLat, EastLng: midLng, WestLng: t.WestLng}, // NW
		{NorthLat: t.NorthLat, SouthLat: midLat, EastLng: t.EastLng, WestLng: midLng}, // NE
		{NorthLat: midLat, SouthLat: t.SouthLat, EastLng: midLng, WestLng: t.WestLng}, // SW
		{NorthLat: midLat, SouthLat: t.SouthLat, EastLng: t.EastLng, WestLng: midLng}, // SE
	}
}

func (t GeoTile) String() string {
	return fmt.Sprintf("tile[%.5f,%.5f → %.5f,%.5f]", t.SouthLat, t.WestLng, t.NorthLat, t.EastLng)
}
