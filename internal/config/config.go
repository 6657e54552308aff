package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete scandesk configuration
type Config struct {
	InstanceID       string       `yaml:"instance_id"`
	BenchID          string       `yaml:"bench_id"`           // physical scanning bench identifier
	ShutdownTimeoutS int          `yaml:"shutdown_timeout_s"` // graceful shutdown timeout in seconds (default: 5)
	Camera           CameraConfig `yaml:"camera"`
	Roster           RosterConfig `yaml:"roster"`
	Upload           UploadConfig `yaml:"upload"`
	PDF              PDFConfig    `yaml:"pdf"`
	Import           ImportConfig `yaml:"import"`
	MQTT             MQTTConfig   `yaml:"mqtt"`
}

// CameraConfig contains capture device settings
type CameraConfig struct {
	// RearDevice and FrontDevice are V4L2 device paths (e.g. /dev/video0).
	// Empty paths disable the tier; both empty selects the synthetic provider.
	RearDevice       string `yaml:"rear_device"`
	FrontDevice      string `yaml:"front_device"`
	Resolution       string `yaml:"resolution"`         // 512p, 720p, 1080p
	SettleMS         int    `yaml:"settle_ms"`          // fallback-path settle delay (default: 500)
	MetadataTimeoutS int    `yaml:"metadata_timeout_s"` // fallback-path readiness timeout (default: 5)
}

// RosterConfig contains roster provider settings
type RosterConfig struct {
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"` // students fetched per snapshot (default: 50)
	SortKey  string `yaml:"sort_key"`  // default: roll_number
	APIToken string `yaml:"api_token"`
}

// UploadConfig contains scan uploader settings
type UploadConfig struct {
	BaseURL  string `yaml:"base_url"`
	TimeoutS int    `yaml:"timeout_s"` // submission deadline (default: 30)
}

// PDFConfig contains the PDF collaborator endpoint
type PDFConfig struct {
	BaseURL string `yaml:"base_url"`
}

// ImportConfig contains file import policy
type ImportConfig struct {
	MaxBytes int64 `yaml:"max_bytes"` // pending-frame import ceiling (default: 10 MiB)
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Control string `yaml:"control"`
	Events  string `yaml:"events"`
	Health  string `yaml:"health"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
