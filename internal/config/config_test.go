package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("expected Enabled true")
	}
	if !cfg.Headless {
		t.Error("expected Headless true")
	}
	if cfg.Viewport.Width != 1280 || cfg.Viewport.Height != 800 {
		t.Errorf("expected viewport 1280x800, got %dx%d", cfg.Viewport.Width, cfg.Viewport.Height)
	}
	if cfg.Format != FormatPNG {
		t.Errorf("expected format png, got %s", cfg.Format)
	}
	if cfg.SegmentsMax != 8 {
		t.Errorf("expected segments_max 8, got %d", cfg.SegmentsMax)
	}
	if cfg.Wait.Event != "load" {
		t.Errorf("expected wait event load, got %q", cfg.Wait.Event)
	}
	if cfg.ConnectAttempts != 3 {
		t.Errorf("expected connect_attempts 3, got %d", cfg.ConnectAttempts)
	}
	if cfg.IsExternal() {
		t.Error("expected default config to not be external")
	}
	if !cfg.CleanupProfileOnDrop() {
		t.Error("expected default config to clean up profile on drop")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
headless: false
viewport:
  width: 1920
  height: 1080
  device_scale_factor: 2.0
format: webp
segments_max: 4
fullpage: true
wait:
  event: networkidle
connect_port: 9222
`

	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Headless {
		t.Error("expected Headless false")
	}
	if cfg.Viewport.Width != 1920 || cfg.Viewport.Height != 1080 {
		t.Errorf("expected viewport 1920x1080, got %dx%d", cfg.Viewport.Width, cfg.Viewport.Height)
	}
	if cfg.Format != FormatWebP {
		t.Errorf("expected format webp, got %s", cfg.Format)
	}
	if cfg.SegmentsMax != 4 {
		t.Errorf("expected segments_max 4, got %d", cfg.SegmentsMax)
	}
	if !cfg.FullPage {
		t.Error("expected fullpage true")
	}
	if cfg.ConnectPort == nil || *cfg.ConnectPort != 9222 {
		t.Errorf("expected connect_port 9222, got %v", cfg.ConnectPort)
	}
	if !cfg.IsExternal() {
		t.Error("expected IsExternal true when connect_port set")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFilePartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	configContent := `
headless: false
`

	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Headless {
		t.Error("expected Headless false")
	}
	// Defaults preserved for unspecified fields.
	if cfg.Viewport.Width != 1280 {
		t.Errorf("expected default viewport width 1280, got %d", cfg.Viewport.Width)
	}
	if cfg.SegmentsMax != 8 {
		t.Errorf("expected default segments_max 8, got %d", cfg.SegmentsMax)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"zero viewport width", func(c *Config) { c.Viewport.Width = 0 }, true},
		{"bad format", func(c *Config) { c.Format = "bmp" }, true},
		{"segments_max zero", func(c *Config) { c.SegmentsMax = 0 }, true},
		{"empty wait strategy", func(c *Config) { c.Wait = WaitStrategy{} }, true},
		{"zero connect attempts", func(c *Config) { c.ConnectAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
