package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	// Validate bench_id
	if cfg.BenchID == "" {
		return fmt.Errorf("bench_id is required")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	// Validate camera config
	switch cfg.Camera.Resolution {
	case "":
		cfg.Camera.Resolution = "720p"
	case "512p", "720p", "1080p":
	default:
		return fmt.Errorf("camera.resolution must be 512p, 720p or 1080p, got %q", cfg.Camera.Resolution)
	}
	if cfg.Camera.SettleMS <= 0 {
		cfg.Camera.SettleMS = 500
	}
	if cfg.Camera.MetadataTimeoutS <= 0 {
		cfg.Camera.MetadataTimeoutS = 5
	}

	// Validate roster config
	if cfg.Roster.BaseURL == "" {
		return fmt.Errorf("roster.base_url is required")
	}
	if cfg.Roster.PageSize <= 0 {
		cfg.Roster.PageSize = 50
	}
	if cfg.Roster.SortKey == "" {
		cfg.Roster.SortKey = "roll_number"
	}

	// Validate upload config
	if cfg.Upload.BaseURL == "" {
		return fmt.Errorf("upload.base_url is required")
	}
	if cfg.Upload.TimeoutS <= 0 {
		cfg.Upload.TimeoutS = 30
	}

	if cfg.Import.MaxBytes <= 0 {
		cfg.Import.MaxBytes = 10 << 20 // 10 MiB
	}

	// Validate MQTT broker
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	// Set default topics if not provided
	if cfg.MQTT.Topics.Control == "" {
		cfg.MQTT.Topics.Control = fmt.Sprintf("scan/control/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Events == "" {
		cfg.MQTT.Topics.Events = fmt.Sprintf("scan/events/%s", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Health == "" {
		cfg.MQTT.Topics.Health = fmt.Sprintf("scan/health/%s", cfg.InstanceID)
	}

	// Set default QoS if not provided
	if cfg.MQTT.QoS == nil {
		cfg.MQTT.QoS = map[string]byte{
			"control": 1,
			"session": 1,
			"upload":  1,
			"health":  0,
		}
	}

	return nil
}
