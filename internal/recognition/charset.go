package recognition

import "unicode/utf8"

// DefaultCharset is the English character set of the EasyOCR recognizer,
// in class order starting at class 1.
const DefaultCharset = "0123456789!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ €" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// BlankIndex is the CTC blank class.
const BlankIndex = 0

// Charset maps recognizer class indices to characters. Class 0 is the
// blank; class i > 0 is the (i-1)th rune.
type Charset []rune

// NewCharset splits s into runes.
func NewCharset(s string) Charset {
	return Charset([]rune(s))
}

// NumClasses is the number of model output classes including the blank.
func (c Charset) NumClasses() int {
	return len(c) + 1
}

// Char returns the rune for class index i and whether it exists.
// The blank and out-of-range indices report false.
func (c Charset) Char(i int) (rune, bool) {
	if i <= BlankIndex || i > len(c) {
		return utf8.RuneError, false
	}
	return c[i-1], true
}
