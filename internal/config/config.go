package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Models ModelsConfig `yaml:"models"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"` // gin mode: release, debug, test
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	MaxImagePixels  int           `yaml:"max_image_pixels"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelsConfig points at the two pretrained artifacts and the runtime library.
type ModelsConfig struct {
	RuntimeLibrary string         `yaml:"runtime_library"`
	Detector       DetectorConfig `yaml:"detector"`
	Severity       SeverityConfig `yaml:"severity"`
}

type DetectorConfig struct {
	ModelPath     string  `yaml:"model_path"`
	MetadataPath  string  `yaml:"metadata_path"`
	Confidence    float64 `yaml:"confidence"`
	IoU           float64 `yaml:"iou"`
	MaxDetections int     `yaml:"max_detections"`
	PoolSize      int     `yaml:"pool_size"`
}

type SeverityConfig struct {
	ModelPath    string `yaml:"model_path"`
	MetadataPath string `yaml:"metadata_path"`
	PoolSize     int    `yaml:"pool_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads an optional .env file, then the YAML file at configPath (or the
// first default location that exists), then applies env overrides and
// defaults. A missing file is not an error when no explicit path was given.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath()
	}

	var cfg Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse configuration %s: %w", configPath, err)
			}
		case explicit || !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	return &cfg, nil
}

func defaultConfigPath() string {
	for _, p := range []string{"./config.yaml", "./config/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("ONNXRUNTIME_LIB"); v != "" {
		c.Models.RuntimeLibrary = v
	}
	if v := os.Getenv("DETECTOR_MODEL_PATH"); v != "" {
		c.Models.Detector.ModelPath = v
	}
	if v := os.Getenv("DETECTOR_METADATA_PATH"); v != "" {
		c.Models.Detector.MetadataPath = v
	}
	if v := os.Getenv("SEVERITY_MODEL_PATH"); v != "" {
		c.Models.Severity.ModelPath = v
	}
	if v := os.Getenv("SEVERITY_METADATA_PATH"); v != "" {
		c.Models.Severity.MetadataPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}
	if c.Server.MaxImagePixels == 0 {
		c.Server.MaxImagePixels = 178956970
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Models.Detector.ModelPath == "" {
		c.Models.Detector.ModelPath = "models/detector.onnx"
	}
	if c.Models.Detector.MetadataPath == "" {
		c.Models.Detector.MetadataPath = "models/detector_metadata.json"
	}
	if c.Models.Detector.Confidence == 0 {
		c.Models.Detector.Confidence = 0.25
	}
	if c.Models.Detector.IoU == 0 {
		c.Models.Detector.IoU = 0.7
	}
	if c.Models.Detector.MaxDetections == 0 {
		c.Models.Detector.MaxDetections = 300
	}
	if c.Models.Detector.PoolSize == 0 {
		c.Models.Detector.PoolSize = 1
	}

	if c.Models.Severity.ModelPath == "" {
		c.Models.Severity.ModelPath = "models/severity.onnx"
	}
	if c.Models.Severity.MetadataPath == "" {
		c.Models.Severity.MetadataPath = "models/severity_metadata.json"
	}
	if c.Models.Severity.PoolSize == 0 {
		c.Models.Severity.PoolSize = 1
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}
