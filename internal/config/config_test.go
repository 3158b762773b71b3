package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_PATH", "HOST", "PORT", "GIN_MODE", "ONNXRUNTIME_LIB",
		"DETECTOR_MODEL_PATH", "DETECTOR_METADATA_PATH",
		"SEVERITY_MODEL_PATH", "SEVERITY_METADATA_PATH",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 178956970, cfg.Server.MaxImagePixels)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Zero(t, cfg.Server.ReadTimeout)
	assert.InDelta(t, 0.25, cfg.Models.Detector.Confidence, 1e-9)
	assert.InDelta(t, 0.7, cfg.Models.Detector.IoU, 1e-9)
	assert.Equal(t, 300, cfg.Models.Detector.MaxDetections)
	assert.Equal(t, 1, cfg.Models.Detector.PoolSize)
	assert.Equal(t, 1, cfg.Models.Severity.PoolSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 8081
  read_timeout: 30s
  max_image_pixels: 40000000
models:
  runtime_library: /opt/ort/libonnxruntime.so
  detector:
    model_path: /models/acne.onnx
    confidence: 0.4
    pool_size: 2
  severity:
    model_path: /models/severity.onnx
log:
  level: debug
  format: json
`)
	t.Setenv("PORT", "9090")
	t.Setenv("SEVERITY_MODEL_PATH", "/override/severity.onnx")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 40000000, cfg.Server.MaxImagePixels)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", cfg.Models.RuntimeLibrary)
	assert.Equal(t, "/models/acne.onnx", cfg.Models.Detector.ModelPath)
	assert.InDelta(t, 0.4, cfg.Models.Detector.Confidence, 1e-9)
	assert.Equal(t, 2, cfg.Models.Detector.PoolSize)
	assert.Equal(t, "/override/severity.onnx", cfg.Models.Severity.ModelPath)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse configuration")
}

func TestLoad_BadPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "five-thousand")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PORT")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Server.Mode = "turbo"
	cfg.Server.MaxImagePixels = -1
	cfg.Models.Detector.Confidence = 1.5
	cfg.Models.Detector.IoU = -0.1
	cfg.Models.Severity.PoolSize = 0
	cfg.Log.Format = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid server.mode")
	assert.Contains(t, msg, "server.max_image_pixels")
	assert.Contains(t, msg, "models.detector.confidence")
	assert.Contains(t, msg, "models.detector.iou")
	assert.Contains(t, msg, "models.severity.pool_size")
	assert.Contains(t, msg, "invalid log.format")
}
