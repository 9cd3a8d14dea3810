package inference

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
)

func TestShape(t *testing.T) {
	assert.Equal(t, 1*3*608*800, Shape{1, 3, 608, 800}.Elements())
	assert.Equal(t, -1, Shape{1, Dynamic, 97}.Elements())
	assert.Equal(t, 0, Shape{}.Elements())
	assert.True(t, Shape{1, 1, 64, 1000}.IsStatic())
	assert.False(t, Shape{1, Dynamic, 97}.IsStatic())
	assert.Equal(t, "[1,?,97]", Shape{1, Dynamic, 97}.String())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		declared Shape
		expected Shape
		want     Shape
		wantErr  bool
	}{
		{"exact", Shape{1, 3, 608, 800}, Shape{1, 3, 608, 800}, Shape{1, 3, 608, 800}, false},
		{"dynamic batch and spatial", Shape{-1, 3, -1, -1}, Shape{1, 3, 608, 800}, Shape{1, 3, 608, 800}, false},
		{"expected dynamic", Shape{1, 249, 97}, Shape{1, Dynamic, 97}, Shape{1, 249, 97}, false},
		{"both dynamic", Shape{1, -1, 97}, Shape{1, Dynamic, 97}, Shape{1, Dynamic, 97}, false},
		{"rank", Shape{1, 3, 608}, Shape{1, 3, 608, 800}, nil, true},
		{"size", Shape{1, 1, 32, 100}, Shape{1, 1, 64, 1000}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.declared, tt.expected)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errs.ErrModelShapeMismatch))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckInput(t *testing.T) {
	s := Shape{1, 1, 2, 3}
	assert.NoError(t, CheckInput(s, make([]byte, 24)))
	err := CheckInput(s, make([]byte, 20))
	assert.True(t, errors.Is(err, errs.ErrModelShapeMismatch))
	assert.NoError(t, CheckInput(Shape{1, Dynamic}, make([]byte, 7)))
}

func TestONNXLoader_ModelPath(t *testing.T) {
	l := &ONNXLoader{opts: ONNXOptions{ModelDir: "/models"}}
	assert.Equal(t, filepath.Join("/models", "easyocr_detector.onnx"), l.ModelPath("easyocr_detector"))
}

func TestONNXLoader_MissingModel(t *testing.T) {
	l := &ONNXLoader{opts: ONNXOptions{ModelDir: t.TempDir()}}
	_, err := l.Load("missing", Shape{1}, Shape{1})
	assert.Error(t, err)
}
