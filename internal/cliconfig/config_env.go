package cliconfig

import "os"

// EnvPrefix prefixes every environment variable muxship reads.
const EnvPrefix = "MUXSHIP_"

// ApplyEnvConfig applies configuration from MUXSHIP_* environment variables.
// It respects flags that have been explicitly set (changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	s.setString("addr", env("ADDR"), &cfg.Addr)
	s.setString("transport", env("TRANSPORT"), &cfg.Transport)
	s.setString("spool-dir", env("SPOOL_DIR"), &cfg.SpoolDir)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("reporters", env("REPORTERS"), &cfg.Reporters); err != nil {
		return err
	}
	if err := s.setIntFromString("streams", env("STREAMS_PER_REPORTER"), &cfg.StreamsPerReporter); err != nil {
		return err
	}
	if err := s.setIntFromString("max-attempts", env("MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}

	if err := s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-initial", env("RECONNECT_INITIAL"), &cfg.ReconnectInitial); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-max", env("RECONNECT_MAX"), &cfg.ReconnectMax); err != nil {
		return err
	}

	return s.setUint64FromString("session-id", env("SESSION_ID"), &cfg.SessionID)
}
