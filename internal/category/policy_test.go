package category

import (
	"reflect"
	"testing"
)

var (
	desktop = ScreenSize{Width: 1920, Height: 1024}
	phone   = ScreenSize{Width: 390, Height: 844}
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		toggles Toggles
		zoom    float64
		screen  ScreenSize
		want    []Category
	}{
		{
			name:    "bus excluded at 6.5 on large screen",
			toggles: Toggles{Bus: true},
			zoom:    6.5,
			screen:  desktop,
			want:    []Category{},
		},
		{
			name:    "bus included at 7.5 on large screen",
			toggles: Toggles{Bus: true},
			zoom:    7.5,
			screen:  desktop,
			want:    []Category{Bus},
		},
		{
			name:    "bus excluded at 7 on small screen",
			toggles: Toggles{Bus: true},
			zoom:    7,
			screen:  phone,
			want:    []Category{},
		},
		{
			name:    "bus included at 8 on small screen",
			toggles: Toggles{Bus: true},
			zoom:    8,
			screen:  phone,
			want:    []Category{Bus},
		},
		{
			name:    "intercity rail at zoom 3",
			toggles: Toggles{IntercityRail: true},
			zoom:    3,
			screen:  desktop,
			want:    []Category{IntercityRail},
		},
		{
			name:    "intercity rail excluded at zoom 2",
			toggles: Toggles{IntercityRail: true},
			zoom:    2,
			screen:  desktop,
			want:    []Category{},
		},
		{
			name:    "local rail needs zoom 4",
			toggles: AllVisible(),
			zoom:    3,
			screen:  desktop,
			want:    []Category{IntercityRail, Other},
		},
		{
			name:    "everything at street level",
			toggles: AllVisible(),
			zoom:    14.2,
			screen:  phone,
			want:    []Category{Bus, IntercityRail, LocalRail, Other},
		},
		{
			name:    "toggles off",
			toggles: Toggles{},
			zoom:    14,
			screen:  desktop,
			want:    []Category{},
		},
		{
			name:    "rounding up",
			toggles: Toggles{LocalRail: true},
			zoom:    3.6,
			screen:  desktop,
			want:    []Category{LocalRail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.toggles, tt.zoom, tt.screen)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Select() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelect_ZoomTwoNeverRequestsRail(t *testing.T) {
	for _, toggles := range []Toggles{{}, {IntercityRail: true}, AllVisible()} {
		got := Select(toggles, 2, desktop)
		for _, c := range got {
			if c == IntercityRail {
				t.Errorf("Select(%+v, 2) included %q", toggles, c)
			}
		}
	}
}

func TestBusThreshold(t *testing.T) {
	if got := BusThreshold(ScreenSize{Width: 767, Height: 2000}); got != BusZoomSmallScreen {
		t.Errorf("BusThreshold(767) = %v, want %v", got, BusZoomSmallScreen)
	}
	if got := BusThreshold(ScreenSize{Width: 2000, Height: 768}); got != BusZoomLargeScreen {
		t.Errorf("BusThreshold(768) = %v, want %v", got, BusZoomLargeScreen)
	}
}
