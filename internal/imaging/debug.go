package imaging

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// DebugSink receives intermediate images produced while scanning a label.
// Implementations must be safe for concurrent use and must not retain img
// past the call.
type DebugSink interface {
	Dump(name string, img image.Image)
}

// NopSink discards every image.
type NopSink struct{}

// Dump implements DebugSink.
func (NopSink) Dump(string, image.Image) {}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DirSink writes each dumped image as a numbered PNG in Dir.
//
// Files are named "<seq>_<name>.png" so a directory listing reads in the
// order the pipeline produced them. Write failures are reported through
// OnError (if set) and otherwise ignored; debugging output never fails a scan.
type DirSink struct {
	Dir     string
	OnError func(name string, err error)

	mu  sync.Mutex
	seq int
}

// NewDirSink creates dir if needed and returns a sink writing into it.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}
	return &DirSink{Dir: dir}, nil
}

// Dump implements DebugSink.
func (s *DirSink) Dump(name string, img image.Image) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	path := filepath.Join(s.Dir, fmt.Sprintf("%04d_%s.png", seq, unsafeName.ReplaceAllString(name, "_")))
	if err := writePNG(path, img); err != nil && s.OnError != nil {
		s.OnError(name, err)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
