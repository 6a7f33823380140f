package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bft-labs/muxship/internal/cliconfig"
	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/frame"
	"github.com/bft-labs/muxship/pkg/log"
)

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "addr = \"file:1\"\nreporters = 2\nstreams_per_reporter = 8\nstate_dir = \"/state\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MUXSHIP_REPORTERS", "3")
	t.Setenv("MUXSHIP_STREAMS_PER_REPORTER", "16")

	cfg := cliconfig.DefaultConfig()
	cfg.StreamsPerReporter = 32 // as if --streams=32 was passed
	changed := map[string]bool{"streams": true}

	if err := loadConfig(&cfg, path, changed); err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Addr != "file:1" {
		t.Errorf("Addr = %q, want file:1", cfg.Addr)
	}
	if cfg.Reporters != 3 {
		t.Errorf("Reporters = %d, want 3 (env over file)", cfg.Reporters)
	}
	if cfg.StreamsPerReporter != 32 {
		t.Errorf("StreamsPerReporter = %d, want 32 (flag over env)", cfg.StreamsPerReporter)
	}
}

func TestMuxshipConfig(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.Addr = "peer:9000"
	cfg.SessionID = 42
	cfg.MaxAttempts = 3

	mc := muxshipConfig(cfg)
	if mc.Addr != "peer:9000" || mc.SessionID != 42 || mc.MaxAttempts != 3 {
		t.Errorf("muxshipConfig() = %+v", mc)
	}
	if mc.Reporters != cfg.Reporters || mc.StreamsPerReporter != cfg.StreamsPerReporter {
		t.Errorf("sizing = %d x %d, want %d x %d",
			mc.Reporters, mc.StreamsPerReporter, cfg.Reporters, cfg.StreamsPerReporter)
	}
}

func TestReadFrames(t *testing.T) {
	var buf bytes.Buffer
	for i, body := range []string{"x", "yy"} {
		p, err := frame.Encode(domain.Stream(i), []byte(body))
		if err != nil {
			t.Fatal(err)
		}
		buf.Write(p)
	}

	n, err := readFrames(&buf, log.NewNoopLogger())
	if err != nil || n != 2 {
		t.Errorf("readFrames() = %d, %v, want 2, nil", n, err)
	}

	// Truncated body.
	p, _ := frame.Encode(1, []byte("abc"))
	if _, err := readFrames(bytes.NewReader(p[:len(p)-1]), log.NewNoopLogger()); err == nil {
		t.Error("readFrames() of truncated frame succeeded")
	}
}
