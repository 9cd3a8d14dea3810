package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
	"github.com/ironsheep/label-ocr-mcp/internal/inference"
	"github.com/ironsheep/label-ocr-mcp/internal/tensor"
)

type fakeEngine struct {
	in, out inference.Shape
	run     func(ctx context.Context, input []byte) ([]byte, error)

	active    int32
	maxActive int32
	closed    bool
}

func (e *fakeEngine) InputShape() inference.Shape  { return e.in }
func (e *fakeEngine) OutputShape() inference.Shape { return e.out }
func (e *fakeEngine) Close() error                 { e.closed = true; return nil }

func (e *fakeEngine) Run(ctx context.Context, input []byte) ([]byte, error) {
	n := atomic.AddInt32(&e.active, 1)
	defer atomic.AddInt32(&e.active, -1)
	for {
		m := atomic.LoadInt32(&e.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&e.maxActive, m, n) {
			break
		}
	}
	return e.run(ctx, input)
}

type fakeLoader struct {
	engine *fakeEngine
	err    error
	names  []string
}

func (l *fakeLoader) Load(name string, in, out inference.Shape) (inference.Engine, error) {
	l.names = append(l.names, name)
	if l.err != nil {
		return nil, l.err
	}
	return l.engine, nil
}

// blobOutput returns detector output for the default 400x304 grid with a
// strong text block over the given inclusive cell range.
func blobOutput(x0, y0, x1, y1 int) []byte {
	const gw, gh = 400, 304
	values := make([]float32, 2*gw*gh)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			values[y*gw+x] = 0.95
		}
	}
	return tensor.EncodeFloat32s(values)
}

func newFakeDetector(t *testing.T, run func(context.Context, []byte) ([]byte, error)) (*Detector, *fakeEngine) {
	t.Helper()
	d, err := New(DefaultConfig())
	require.NoError(t, err)

	engine := &fakeEngine{in: d.InputShape(), out: d.OutputShape(), run: run}
	require.NoError(t, d.Init(&fakeLoader{engine: engine}))
	return d, engine
}

func TestDetector_NotInitialized(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, d.Ready())

	_, err = d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 100)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotInitialized))
}

func TestDetector_Init(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, inference.Shape{1, 3, 608, 800}, d.InputShape())
	assert.Equal(t, inference.Shape{1, 304, 400, 2}, d.OutputShape())

	engine := &fakeEngine{in: inference.Shape{-1, 3, 608, 800}, out: inference.Shape{1, -1, -1, 2}}
	loader := &fakeLoader{engine: engine}
	require.NoError(t, d.Init(loader))
	assert.True(t, d.Ready())
	assert.Equal(t, []string{ModelName}, loader.names)

	// Second Init does not reload.
	require.NoError(t, d.Init(loader))
	assert.Len(t, loader.names, 1)

	require.NoError(t, d.Close())
	assert.True(t, engine.closed)
	assert.False(t, d.Ready())
}

func TestDetector_InitShapeMismatch(t *testing.T) {
	tests := []struct {
		name    string
		in, out inference.Shape
	}{
		{"input size", inference.Shape{1, 3, 640, 640}, inference.Shape{1, 304, 400, 2}},
		{"input channels", inference.Shape{1, 1, 608, 800}, inference.Shape{1, 304, 400, 2}},
		{"output grid", inference.Shape{1, 3, 608, 800}, inference.Shape{1, 608, 800, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(DefaultConfig())
			require.NoError(t, err)

			engine := &fakeEngine{in: tt.in, out: tt.out}
			err = d.Init(&fakeLoader{engine: engine})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrModelShapeMismatch))
			assert.True(t, engine.closed)
			assert.False(t, d.Ready())
		})
	}
}

func TestDetector_InitLoaderError(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	err = d.Init(&fakeLoader{err: errors.New("no such file")})
	assert.Error(t, err)
	assert.False(t, d.Ready())
}

func TestDetector_Detect(t *testing.T) {
	var gotInput int
	d, _ := newFakeDetector(t, func(_ context.Context, input []byte) ([]byte, error) {
		gotInput = len(input)
		return blobOutput(10, 20, 59, 29), nil
	})

	// 1600x1216 has the same aspect as 800x608, so each grid cell is four
	// source pixels in both directions.
	img := image.NewRGBA(image.Rect(0, 0, 1600, 1216))
	regions, err := d.Detect(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, 3*608*800*tensor.BytesPerElement, gotInput)
	require.Len(t, regions, 1)

	// Grid (10,20)-(59,29) -> source (40,80)-(236,116), plus 10% margin.
	r := regions[0]
	assert.InDelta(t, 20.4, r.Left, 1e-6)
	assert.InDelta(t, 76.4, r.Top, 1e-6)
	assert.InDelta(t, 255.6, r.Right, 1e-6)
	assert.InDelta(t, 119.6, r.Bottom, 1e-6)
}

func TestDetector_DetectStretch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resize = ResizeStretch
	d, err := New(cfg)
	require.NoError(t, err)
	engine := &fakeEngine{in: d.InputShape(), out: d.OutputShape(), run: func(context.Context, []byte) ([]byte, error) {
		return blobOutput(100, 100, 199, 151), nil
	}}
	require.NoError(t, d.Init(&fakeLoader{engine: engine}))

	// 400x608 stretched to 800x608: a grid cell is one source pixel wide
	// and two tall.
	regions, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 400, 608)))
	require.NoError(t, err)
	require.Len(t, regions, 1)

	mx := (199.0 - 100.0) * 0.1
	my := (302.0 - 200.0) * 0.1
	assert.InDelta(t, 100-mx, regions[0].Left, 1e-6)
	assert.InDelta(t, 200-my, regions[0].Top, 1e-6)
}

func TestDetector_DetectErrors(t *testing.T) {
	t.Run("engine failure", func(t *testing.T) {
		d, _ := newFakeDetector(t, func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("session crashed")
		})
		_, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 50, 50)))
		assert.True(t, errors.Is(err, errs.ErrInferenceFailed))
	})

	t.Run("short output", func(t *testing.T) {
		d, _ := newFakeDetector(t, func(context.Context, []byte) ([]byte, error) {
			return make([]byte, 16), nil
		})
		_, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 50, 50)))
		assert.True(t, errors.Is(err, errs.ErrModelShapeMismatch))
	})

	t.Run("empty image", func(t *testing.T) {
		d, _ := newFakeDetector(t, func(context.Context, []byte) ([]byte, error) {
			return blobOutput(0, 0, 0, 0), nil
		})
		_, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		d, _ := newFakeDetector(t, func(context.Context, []byte) ([]byte, error) {
			return blobOutput(0, 0, 0, 0), nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := d.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 50, 50)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDetector_SerializesRuns(t *testing.T) {
	d, engine := newFakeDetector(t, func(context.Context, []byte) ([]byte, error) {
		time.Sleep(5 * time.Millisecond)
		return blobOutput(0, 0, 0, 0), nil
	})

	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.White)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Detect(context.Background(), img)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.maxActive))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.OutputStride = 3
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Resize = "crop"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Std[1] = 0
	assert.Error(t, bad.Validate())

	_, err := New(bad)
	assert.Error(t, err)
}
