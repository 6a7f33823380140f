package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"MUXSHIP_ADDR":                 "peer:9000",
				"MUXSHIP_TRANSPORT":            "websocket",
				"MUXSHIP_SPOOL_DIR":            "/spool",
				"MUXSHIP_REPORTERS":            "8",
				"MUXSHIP_STREAMS_PER_REPORTER": "16",
				"MUXSHIP_RECONNECT_MAX":        "1m",
				"MUXSHIP_SESSION_ID":           "7",
			},
			changed: map[string]bool{},
			expected: Config{
				Addr:               "peer:9000",
				Transport:          "websocket",
				SpoolDir:           "/spool",
				Reporters:          8,
				StreamsPerReporter: 16,
				ReconnectMax:       time.Minute,
				SessionID:          7,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"MUXSHIP_ADDR":      "env:1",
				"MUXSHIP_LOG_LEVEL": "debug",
			},
			changed:  map[string]bool{"addr": true},
			initial:  Config{Addr: "flag:1"},
			expected: Config{Addr: "flag:1", LogLevel: "debug"},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"MUXSHIP_DIAL_TIMEOUT": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"MUXSHIP_REPORTERS": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
