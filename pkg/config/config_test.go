package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 2, cfg.ConnectionSlots)
	assert.Equal(t, "127.0.0.1:8099", cfg.DiagnosticsAddr)
	assert.Equal(t, "table", cfg.OutputFormat)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"log_level: debug\nscan_timeout: 30s\nconnection_slots: 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 0, cfg.ConnectionSlots, "explicit zero MUST override the default")

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "127.0.0.1:8099", cfg.DiagnosticsAddr)
	assert.Equal(t, "table", cfg.OutputFormat)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scan_timeout: not-a-duration\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "scan_timeout")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			want:     logrus.InfoLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warn",
			want:     logrus.WarnLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: "error",
			want:     logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger, err := cfg.NewLogger()
			require.NoError(t, err)

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_NewLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}

	_, err := cfg.NewLogger()
	assert.ErrorContains(t, err, "loud")
}
