package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scandesk.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
instance_id: bench-01
bench_id: hall-a-desk-3
roster:
  base_url: http://roster.local/api
upload:
  base_url: http://scans.local/api
mqtt:
  broker: localhost:1883
`

// TestLoadFillsDefaults verifies a minimal config loads with every default
// applied.
func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Camera.Resolution != "720p" {
		t.Errorf("expected 720p default, got %s", cfg.Camera.Resolution)
	}
	if cfg.Camera.SettleMS != 500 {
		t.Errorf("expected settle 500ms default, got %d", cfg.Camera.SettleMS)
	}
	if cfg.Camera.MetadataTimeoutS != 5 {
		t.Errorf("expected metadata timeout 5s default, got %d", cfg.Camera.MetadataTimeoutS)
	}
	if cfg.Roster.PageSize != 50 {
		t.Errorf("expected page size 50 default, got %d", cfg.Roster.PageSize)
	}
	if cfg.Roster.SortKey != "roll_number" {
		t.Errorf("expected roll_number sort default, got %s", cfg.Roster.SortKey)
	}
	if cfg.Upload.TimeoutS != 30 {
		t.Errorf("expected upload timeout 30s default, got %d", cfg.Upload.TimeoutS)
	}
	if cfg.Import.MaxBytes != 10<<20 {
		t.Errorf("expected 10 MiB import ceiling default, got %d", cfg.Import.MaxBytes)
	}
	if cfg.MQTT.Topics.Control != "scan/control/bench-01" {
		t.Errorf("unexpected control topic %s", cfg.MQTT.Topics.Control)
	}
	if cfg.MQTT.Topics.Events != "scan/events/bench-01" {
		t.Errorf("unexpected events topic %s", cfg.MQTT.Topics.Events)
	}
	if cfg.MQTT.QoS["control"] != 1 || cfg.MQTT.QoS["health"] != 0 {
		t.Errorf("unexpected default qos map %v", cfg.MQTT.QoS)
	}
}

// TestValidateRequiredFields verifies each required field is enforced.
func TestValidateRequiredFields(t *testing.T) {
	base := func() *Config {
		return &Config{
			InstanceID: "bench-01",
			BenchID:    "desk-3",
			Roster:     RosterConfig{BaseURL: "http://roster"},
			Upload:     UploadConfig{BaseURL: "http://scans"},
			MQTT:       MQTTConfig{Broker: "localhost:1883"},
		}
	}

	if err := Validate(base()); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing instance_id", func(c *Config) { c.InstanceID = "" }},
		{"uppercase instance_id", func(c *Config) { c.InstanceID = "Bench-01" }},
		{"missing bench_id", func(c *Config) { c.BenchID = "" }},
		{"missing roster url", func(c *Config) { c.Roster.BaseURL = "" }},
		{"missing upload url", func(c *Config) { c.Upload.BaseURL = "" }},
		{"missing broker", func(c *Config) { c.MQTT.Broker = "" }},
		{"bogus resolution", func(c *Config) { c.Camera.Resolution = "4k" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestLoadMissingFile verifies a useful error for an absent config path.
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/scandesk.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestLoadExplicitValuesWin verifies explicit settings are not overwritten
// by defaults.
func TestLoadExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
camera:
  rear_device: /dev/video2
  resolution: 1080p
  settle_ms: 250
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Camera.RearDevice != "/dev/video2" {
		t.Errorf("unexpected rear device %s", cfg.Camera.RearDevice)
	}
	if cfg.Camera.Resolution != "1080p" {
		t.Errorf("unexpected resolution %s", cfg.Camera.Resolution)
	}
	if cfg.Camera.SettleMS != 250 {
		t.Errorf("unexpected settle %d", cfg.Camera.SettleMS)
	}
}
