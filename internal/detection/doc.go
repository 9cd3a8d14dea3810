// Package detection locates text regions on a label photo.
//
// The Detector feeds a normalized RGB tensor to a CRAFT-style model that
// returns two score maps on a half-resolution grid: a per-cell text score
// and a link score that bridges characters of the same word or line.
// PostProcess grows connected components over those maps, maps them back
// to source pixels through the resize Transform, filters small boxes, adds
// a margin and merges overlaps.
//
// # Output Order
//
// Regions come back in discovery order, which follows the raster scan of
// the grid rather than reading order. Set Config.SortRegions to get an
// approximate top-to-bottom, left-to-right order instead.
//
// # Thresholds
//
// The defaults (text 0.7, link 0.4, low text 0.4, min size 20px, margin
// 10%) match the EasyOCR tuning the bundled model was exported with.
package detection
