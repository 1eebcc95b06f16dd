package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	testCases := []struct {
		env   string
		level string
		want  zapcore.Level
	}{
		{"prod", "", zapcore.InfoLevel},
		{"dev", "", zapcore.DebugLevel},
		{"prod", "warn", zapcore.WarnLevel},
		{"dev", " error ", zapcore.ErrorLevel},
	}
	for _, tc := range testCases {
		t.Run(tc.env+"/"+tc.level, func(t *testing.T) {
			l, err := NewLogger(tc.env, tc.level)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tc.want))
			if tc.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tc.want-1))
			}
		})
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewSugar("dev", "loud")
	assert.Error(t, err)
}
