package muxship_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/muxship/pkg/muxship"
)

// blockingDialer never connects; Dial returns once ctx is done.
type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context) (muxship.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingHandler struct {
	muxship.BaseEventHandler

	mu     sync.Mutex
	events []muxship.StateChangeEvent
}

func (h *recordingHandler) OnStateChange(ev muxship.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingHandler) states() []muxship.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]muxship.State, len(h.events))
	for i, ev := range h.events {
		out[i] = ev.Current
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := muxship.DefaultConfig()
	if cfg.Transport != muxship.TransportTCP {
		t.Errorf("Transport = %q, want tcp", cfg.Transport)
	}
	if cfg.Reporters != 4 || cfg.StreamsPerReporter != 64 {
		t.Errorf("sizing = %d x %d, want 4 x 64", cfg.Reporters, cfg.StreamsPerReporter)
	}
	if cfg.ReconnectInitial <= 0 || cfg.ReconnectMax < cfg.ReconnectInitial {
		t.Errorf("reconnect = %v..%v", cfg.ReconnectInitial, cfg.ReconnectMax)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  muxship.Config
	}{
		{name: "too many reporters", cfg: muxship.Config{Addr: "x:1", Reporters: 300}},
		{name: "stream space exceeded", cfg: muxship.Config{Addr: "x:1", Reporters: 256, StreamsPerReporter: 512}},
		{name: "unknown transport", cfg: muxship.Config{Addr: "x:1", Transport: "quic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := muxship.New(tt.cfg); !errors.Is(err, muxship.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestMuxship_StartStop(t *testing.T) {
	h := &recordingHandler{}
	reg := prometheus.NewRegistry()

	m, err := muxship.New(muxship.Config{Addr: "unused:1"},
		muxship.WithDialer(blockingDialer{}),
		muxship.WithEventHandler(h),
		muxship.WithRegisterer(reg),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Config().Reporters; got != 4 {
		t.Errorf("Config().Reporters = %d, want default 4", got)
	}
	if m.Status() != muxship.StateStopped {
		t.Fatalf("Status() = %s, want Stopped", m.Status())
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, muxship.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	if m.Status() != muxship.StateStarting {
		t.Errorf("Status() = %s, want Starting while no peer is reachable", m.Status())
	}

	done := make(chan error, 1)
	go func() { done <- m.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}

	want := []muxship.State{muxship.StateStarting, muxship.StateStopping, muxship.StateStopped}
	got := h.states()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, got[i], want[i])
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "muxship_pipeline_state" {
			found = true
		}
	}
	if !found {
		t.Error("muxship_pipeline_state not registered")
	}
}
