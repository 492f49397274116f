package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warn", WARNING},
		{" Warning ", WARNING},
		{"error", ERROR},
		{"verbose", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.input))
		})
	}
}

func TestNamedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(WARNING, &buf)
	child := root.Named("manager").Named("fanout")

	child.Info("hidden %d", 1)
	assert.Empty(t, buf.String())

	root.SetLevel(DEBUG)
	child.Debug("visible %d", 2)
	assert.Contains(t, buf.String(), "[DEBUG] ")
	assert.Contains(t, buf.String(), "[manager.fanout] visible 2")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "sk-1...wxyz", MaskSecret("sk-1234567890wxyz"))
}
