package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestNew tests logger construction for each format and level.
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		enabled zapcore.Level
		wantErr string
	}{
		{name: "defaults", enabled: zapcore.InfoLevel},
		{name: "json debug", level: "debug", format: "json", enabled: zapcore.DebugLevel},
		{name: "console warn", level: "WARN", format: "console", enabled: zapcore.WarnLevel},
		{name: "text alias", level: "error", format: "text", enabled: zapcore.ErrorLevel},
		{name: "bad level", level: "loud", wantErr: `invalid log level "loud"`},
		{name: "bad format", format: "xml", wantErr: `invalid log format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}

// TestMust tests that Must panics on invalid settings.
func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must("info", "json") })
	assert.Panics(t, func() { Must("nope", "json") })
}
