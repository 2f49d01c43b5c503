// Package mapview turns the current camera into map-view requests.
package mapview

import (
	"log/slog"

	"github.com/catenarymaps/spruce-sync/internal/category"
	"github.com/catenarymaps/spruce-sync/internal/protocol"
	"github.com/catenarymaps/spruce-sync/internal/tiles"
)

// Camera is a read-only view of the map camera.
type Camera interface {
	Viewport() tiles.Viewport
	Zoom() float64
}

// Screen reports the device screen size.
type Screen interface {
	Size() category.ScreenSize
}

// Updater sends map-view requests.
type Updater interface {
	UpdateMapView(req protocol.MapViewRequest)
}

// FeedLookup maps a partition to its realtime feed ids. Partitions with
// no feeds are never requested.
type FeedLookup map[string][]string

// Filter returns the partitions that have at least one realtime feed,
// preserving order.
func (l FeedLookup) Filter(partitions []string) []string {
	out := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if len(l[p]) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Syncer computes and sends the map-view request for a camera state.
type Syncer struct {
	camera  Camera
	screen  Screen
	feeds   FeedLookup
	updater Updater
	logger  *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(camera Camera, screen Screen, feeds FeedLookup, updater Updater, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		camera:  camera,
		screen:  screen,
		feeds:   feeds,
		updater: updater,
		logger:  logger,
	}
}

// Sync requests vehicles for the partitions in frame and returns the
// tile bounds it computed. When no category qualifies nothing is sent.
func (s *Syncer) Sync(toggles category.Toggles, partitionsInFrame []string) tiles.LevelBounds {
	zoom := s.camera.Zoom()
	categories := category.Select(toggles, zoom, s.screen.Size())
	bounds := tiles.Encode(s.camera.Viewport(), zoom)

	if len(categories) == 0 {
		s.logger.Debug("no categories in view, skipping map update", "zoom", zoom)
		return bounds
	}

	s.updater.UpdateMapView(protocol.MapViewRequest{
		Categories: categories,
		Partitions: s.feeds.Filter(partitionsInFrame),
		Bounds:     bounds,
	})

	return bounds
}

// StaticCamera is a fixed camera position.
type StaticCamera struct {
	View tiles.Viewport
	Z    float64
}

func (c StaticCamera) Viewport() tiles.Viewport { return c.View }
func (c StaticCamera) Zoom() float64            { return c.Z }

// StaticScreen is a fixed screen size.
type StaticScreen category.ScreenSize

func (s StaticScreen) Size() category.ScreenSize { return category.ScreenSize(s) }
