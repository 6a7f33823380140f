package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all field types",
			fileConfig: FileConfig{
				Addr:               "peer:9000",
				Transport:          "tcp",
				DialTimeout:        "3s",
				SpoolDir:           "/spool",
				StateDir:           "/state",
				Reporters:          2,
				StreamsPerReporter: 32,
				MaxAttempts:        5,
				ReconnectInitial:   "1s",
				ReconnectMax:       "30s",
				MetricsAddr:        ":9100",
				LogLevel:           "warn",
				SessionID:          99,
			},
			changed: map[string]bool{},
			expected: Config{
				Addr:               "peer:9000",
				Transport:          "tcp",
				DialTimeout:        3 * time.Second,
				SpoolDir:           "/spool",
				StateDir:           "/state",
				Reporters:          2,
				StreamsPerReporter: 32,
				MaxAttempts:        5,
				ReconnectInitial:   time.Second,
				ReconnectMax:       30 * time.Second,
				MetricsAddr:        ":9100",
				LogLevel:           "warn",
				SessionID:          99,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Addr:      "file:1",
				Reporters: 9,
			},
			changed:  map[string]bool{"addr": true, "reporters": true},
			initial:  Config{Addr: "flag:1", Reporters: 1},
			expected: Config{Addr: "flag:1", Reporters: 1},
		},
		{
			name:       "zero values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    DefaultConfig(),
			expected:   DefaultConfig(),
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{ReconnectMax: "later"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	tomlContent := `
addr = "peer:9000"
transport = "websocket"
reporters = 3
reconnect_max = "20s"
session_id = 12345
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Addr != "peer:9000" || fc.Transport != "websocket" {
		t.Errorf("Addr/Transport = %q/%q", fc.Addr, fc.Transport)
	}
	if fc.Reporters != 3 {
		t.Errorf("Reporters = %d, want 3", fc.Reporters)
	}
	if fc.ReconnectMax != "20s" {
		t.Errorf("ReconnectMax = %q, want 20s", fc.ReconnectMax)
	}
	if fc.SessionID != 12345 {
		t.Errorf("SessionID = %d, want 12345", fc.SessionID)
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFileConfig() of missing file succeeded")
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("addr = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(bad); err == nil {
		t.Error("LoadFileConfig() of invalid TOML succeeded")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p != "" && !strings.HasSuffix(p, filepath.Join(".muxship", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %q", p)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if !FileExists(dir) {
		t.Error("FileExists(dir) = false")
	}
	if FileExists(filepath.Join(dir, "nope")) {
		t.Error("FileExists(missing) = true")
	}
}
