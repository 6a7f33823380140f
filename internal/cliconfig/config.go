package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/muxship/internal/domain"
)

// Config holds CLI configuration for muxship.
type Config struct {
	Addr        string
	Transport   string
	DialTimeout time.Duration

	SpoolDir string
	StateDir string

	Reporters          int
	StreamsPerReporter int
	MaxAttempts        int

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	MetricsAddr string
	LogLevel    string

	// SessionID pins the session; zero reuses the saved one.
	SessionID uint64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Transport:          "tcp",
		DialTimeout:        5 * time.Second,
		Reporters:          4,
		StreamsPerReporter: 64,
		ReconnectInitial:   500 * time.Millisecond,
		ReconnectMax:       10 * time.Second,
		LogLevel:           "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is required", domain.ErrInvalidConfig)
	}

	c.Transport = strings.ToLower(c.Transport)
	switch c.Transport {
	case "tcp":
	case "websocket":
		if !strings.HasPrefix(c.Addr, "ws://") && !strings.HasPrefix(c.Addr, "wss://") {
			return fmt.Errorf("%w: websocket addr must be a ws:// or wss:// url", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: transport must be tcp or websocket, got %q", domain.ErrInvalidConfig, c.Transport)
	}

	if c.Reporters < 1 || c.Reporters > 256 {
		return fmt.Errorf("%w: reporters must be within 1..256", domain.ErrInvalidConfig)
	}
	if c.StreamsPerReporter < 1 {
		return fmt.Errorf("%w: streams must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: max-attempts must not be negative", domain.ErrInvalidConfig)
	}
	if c.ReconnectInitial <= 0 {
		return fmt.Errorf("%w: reconnect-initial must be positive", domain.ErrInvalidConfig)
	}
	if c.ReconnectMax < c.ReconnectInitial {
		return fmt.Errorf("%w: reconnect-max must be at least reconnect-initial", domain.ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log-level: %v", domain.ErrInvalidConfig, err)
	}

	if c.StateDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(h, ".muxship")
		}
	}

	return nil
}

// configSetter applies values while respecting flag precedence: a value is
// only applied if the corresponding flag was not set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setUint64 sets a uint64 value if non-zero and flag not changed.
func (s *configSetter) setUint64(flag string, value uint64, dst *uint64) {
	if value == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a positive int from an environment value.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setUint64FromString parses a session id. Both decimal and 0x-prefixed hex are accepted.
func (s *configSetter) setUint64FromString(flag, value string, dst *uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	u, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = u
	return nil
}
