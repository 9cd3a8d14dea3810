// Package recognition turns cropped text images into strings with a
// CTC-trained sequence model and greedy decoding.
package recognition
