// Package ocr provides a Tesseract-backed text recognizer.
//
// It is an alternative to the neural recognizer for hosts where the
// recognition model is not available. The detector still finds the text
// regions; each cropped region is handed to Tesseract instead of the CTC
// model, and the result goes through the same cleanup rules.
//
// # Prerequisites
//
// Tesseract must be installed on the system and the binary built with cgo:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Without cgo the package still compiles, but Init reports ErrUnavailable.
//
// # Page Segmentation
//
// Detected regions are usually a single line or a small block of text, so
// the default page segmentation mode is 6 (single uniform block). Use 7
// for regions known to be a single line.
package ocr
