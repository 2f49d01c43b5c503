// Package category decides which vehicle categories to request for the
// current map zoom and layer visibility.
package category

import "math"

// Category is a vehicle category as named on the wire.
type Category string

const (
	Bus           Category = "bus"
	IntercityRail Category = "rail"
	LocalRail     Category = "metro"
	Other         Category = "other"
)

// Zoom thresholds for each category.
const (
	BusZoomSmallScreen = 7.5
	BusZoomLargeScreen = 6.5
	IntercityRailZoom  = 3
	LocalRailZoom      = 4
	OtherZoom          = 3

	// SmallScreenWidth is the shorter-side size (px) below which the
	// small-screen bus threshold applies.
	SmallScreenWidth = 768
)

// Toggles holds per-category layer visibility.
type Toggles struct {
	Bus           bool `yaml:"bus"`
	IntercityRail bool `yaml:"intercity_rail"`
	LocalRail     bool `yaml:"local_rail"`
	Other         bool `yaml:"other"`
}

// AllVisible returns toggles with every layer on.
func AllVisible() Toggles {
	return Toggles{Bus: true, IntercityRail: true, LocalRail: true, Other: true}
}

// ScreenSize is the device screen size in pixels.
type ScreenSize struct {
	Width  float64
	Height float64
}

// Shortest returns the smaller screen dimension.
func (s ScreenSize) Shortest() float64 {
	return math.Min(s.Width, s.Height)
}

// Select returns the categories to request, in a fixed order
// (bus, intercity rail, local rail, other). The result may be empty, in
// which case callers must not send a map-view update.
func Select(t Toggles, zoom float64, screen ScreenSize) []Category {
	z := RoundZoom(zoom)
	out := make([]Category, 0, 4)

	if t.Bus && z >= BusThreshold(screen) {
		out = append(out, Bus)
	}
	if t.IntercityRail && z >= IntercityRailZoom {
		out = append(out, IntercityRail)
	}
	if t.LocalRail && z >= LocalRailZoom {
		out = append(out, LocalRail)
	}
	if t.Other && z >= OtherZoom {
		out = append(out, Other)
	}

	return out
}

// BusThreshold returns the minimum zoom for buses on the given screen.
func BusThreshold(screen ScreenSize) float64 {
	if screen.Shortest() < SmallScreenWidth {
		return BusZoomSmallScreen
	}
	return BusZoomLargeScreen
}

// RoundZoom rounds a camera zoom to the integer level the policy compares
// against. On a large screen buses stay hidden at zoom 6.5 and show at 7.5.
func RoundZoom(zoom float64) float64 {
	return math.RoundToEven(zoom)
}
