// Package tiles converts a map viewport into Web-Mercator slippy-tile
// bounding boxes.
//
// Bounds are computed independently for each fixed level (5, 7, 8, 12)
// and padded by a zoom-dependent margin:
//   - 2 tiles at zoom <= 12
//   - 1 tile above zoom 12
//   - no padding above zoom 13
//
// Viewports that cross the antimeridian yield an inverted rectangle
// (MinX > MaxX). That case is passed through unchanged.
package tiles
