package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/f5ttsapi/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, config.EngineBackendCLI, cfg.Engine.Backend)
	assert.Equal(t, "f5-tts_infer-cli", cfg.Engine.Command)
	assert.Equal(t, "F5-TTS", cfg.Engine.Model)
	assert.Equal(t, "vocos", cfg.Engine.Vocoder)
	assert.Equal(t, 1, cfg.Engine.MaxConcurrency)
	assert.Equal(t, config.CleanupBackendLocal, cfg.Cleanup.Backend)
	assert.Equal(t, time.Second, cfg.Cleanup.Delay)
	assert.Equal(t, 15*time.Minute, cfg.Cleanup.MaxAge)
	assert.Equal(t, int64(50<<20), cfg.Files.MaxUploadBytes)
	assert.Equal(t, filepath.Join(os.TempDir(), "f5tts-api"), cfg.Files.TempDir)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ENGINE_BACKEND", "remote")
	t.Setenv("ENGINE_REMOTE_URL", "http://gpu-box:7860")
	t.Setenv("ENGINE_MAX_CONCURRENCY", "4")
	t.Setenv("ENGINE_TIMEOUT", "90s")
	t.Setenv("TEMP_DIR", "/var/tmp/tts")
	t.Setenv("CLEANUP_BACKEND", "asynq")
	t.Setenv("CLEANUP_DELAY", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, config.EngineBackendRemote, cfg.Engine.Backend)
	assert.Equal(t, "http://gpu-box:7860", cfg.Engine.RemoteURL)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrency)
	assert.Equal(t, 90*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "/var/tmp/tts", cfg.Files.TempDir)
	assert.Equal(t, config.CleanupBackendAsynq, cfg.Cleanup.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Cleanup.Delay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Setenv("ENGINE_BACKEND", "onnx")
	t.Setenv("CLEANUP_BACKEND", "cron")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENGINE_BACKEND")
	assert.Contains(t, err.Error(), "CLEANUP_BACKEND")
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")

	_, err := config.Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Engine.MaxConcurrency = -1
	cfg.Files.MaxUploadBytes = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENGINE_MAX_CONCURRENCY")
	assert.Contains(t, err.Error(), "MAX_UPLOAD_BYTES")
}
