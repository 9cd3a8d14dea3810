package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"WARN", "warn"},
		{" error ", "error"},
		{"info", "info"},
		{"verbose", "info"},
	}
	for _, tt := range tests {
		SetLevel(tt.in)
		assert.Equal(t, tt.want, Level(), "SetLevel(%q)", tt.in)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	logger := New(zapcore.AddSync(&buf))

	SetLevel(LevelWarn)
	logger.Info("hidden")
	logger.Warnw("shown", "regions", 3)
	_ = logger.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "regions")
}
