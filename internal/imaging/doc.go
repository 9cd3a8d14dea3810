// Package imaging prepares label photos for the text detector and recognizer.
//
// Every function here returns a new image and leaves its input untouched.
//
// # Preparation
//
//   - EnhanceVisibility: saturation 1.3, then v*1.2 - 15 per channel
//   - ToGrayscale: full desaturation, still four channels
//   - ResizeWithAspectPad / ResizeStretch: fixed-size model input plus a
//     Transform that maps canvas coordinates back to the source
//   - CropRegion: clamped crop that reports empty results as errs.ErrInvalidRegion
//
// # Diagnostics
//
// DrawRegions renders numbered region outlines, and a DebugSink receives
// intermediate images during a scan (NopSink by default, DirSink to write
// PNGs to disk).
//
// # Loading
//
// ImageCache decodes photos once per path with EXIF auto-orientation.
package imaging
