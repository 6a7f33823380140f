package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Addr               string `toml:"addr"`
	Transport          string `toml:"transport"`
	DialTimeout        string `toml:"dial_timeout"`
	SpoolDir           string `toml:"spool_dir"`
	StateDir           string `toml:"state_dir"`
	Reporters          int    `toml:"reporters"`
	StreamsPerReporter int    `toml:"streams_per_reporter"`
	MaxAttempts        int    `toml:"max_attempts"`
	ReconnectInitial   string `toml:"reconnect_initial"`
	ReconnectMax       string `toml:"reconnect_max"`
	MetricsAddr        string `toml:"metrics_addr"`
	LogLevel           string `toml:"log_level"`
	SessionID          uint64 `toml:"session_id"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.muxship/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".muxship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("addr", fc.Addr, &cfg.Addr)
	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("spool-dir", fc.SpoolDir, &cfg.SpoolDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("reporters", fc.Reporters, &cfg.Reporters)
	s.setInt("streams", fc.StreamsPerReporter, &cfg.StreamsPerReporter)
	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)

	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-initial", fc.ReconnectInitial, &cfg.ReconnectInitial); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-max", fc.ReconnectMax, &cfg.ReconnectMax); err != nil {
		return err
	}

	s.setUint64("session-id", fc.SessionID, &cfg.SessionID)
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
