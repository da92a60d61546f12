package utilities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Dev)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, 7, cfg.MaxAgeDays)

	t.Setenv("LOG_DEV", "0")
	t.Setenv("LOG_LEVEL", "warning")
	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, cfg.level())

	t.Setenv("LOG_MAX_AGE_DAYS", "many")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}

func TestLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, Config{Level: "loud"}.level())
	assert.Equal(t, zapcore.ErrorLevel, Config{Level: "error"}.level())
}

func TestInitWritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "registry.log")
	lg, err := Init(Config{Level: "info", File: file, MaxAgeDays: 1})
	require.NoError(t, err)
	lg.Info("hello", zap.String("k", "v"))
	_ = lg.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}
