package config

import (
	"fmt"
	"strings"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 0 and 65535, got: %d", c.Server.Port))
	}
	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		errs = append(errs, fmt.Sprintf("invalid server.mode: %s (must be: release, debug, test)", c.Server.Mode))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Sprintf("server.max_upload_bytes must be > 0, got: %d", c.Server.MaxUploadBytes))
	}
	if c.Server.MaxImagePixels <= 0 {
		errs = append(errs, fmt.Sprintf("server.max_image_pixels must be > 0, got: %d", c.Server.MaxImagePixels))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be >= 0, got: %v", c.Server.ReadTimeout))
	}

	d := c.Models.Detector
	if d.ModelPath == "" {
		errs = append(errs, "models.detector.model_path is required")
	}
	if d.MetadataPath == "" {
		errs = append(errs, "models.detector.metadata_path is required")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		errs = append(errs, fmt.Sprintf("models.detector.confidence must be between 0 and 1, got: %.2f", d.Confidence))
	}
	if d.IoU < 0 || d.IoU > 1 {
		errs = append(errs, fmt.Sprintf("models.detector.iou must be between 0 and 1, got: %.2f", d.IoU))
	}
	if d.MaxDetections < 1 {
		errs = append(errs, fmt.Sprintf("models.detector.max_detections must be >= 1, got: %d", d.MaxDetections))
	}
	if d.PoolSize < 1 {
		errs = append(errs, fmt.Sprintf("models.detector.pool_size must be >= 1, got: %d", d.PoolSize))
	}

	s := c.Models.Severity
	if s.ModelPath == "" {
		errs = append(errs, "models.severity.model_path is required")
	}
	if s.MetadataPath == "" {
		errs = append(errs, "models.severity.metadata_path is required")
	}
	if s.PoolSize < 1 {
		errs = append(errs, fmt.Sprintf("models.severity.pool_size must be >= 1, got: %d", s.PoolSize))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
