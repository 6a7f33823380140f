package muxship_test

import (
	"context"
	"fmt"
	"os"

	"github.com/bft-labs/muxship/pkg/log"
	"github.com/bft-labs/muxship/pkg/muxship"
)

// ExampleNew shows how to embed muxship in an application.
func ExampleNew() {
	cfg := muxship.DefaultConfig()
	cfg.Addr = "collector.internal:9000"
	cfg.SpoolDir = "/var/spool/muxship"
	cfg.StateDir = "/var/lib/muxship"

	m, err := muxship.New(cfg, muxship.WithLogger(log.NewConsoleAdapter(os.Stderr, "info")))
	if err != nil {
		fmt.Printf("failed to create muxship: %v\n", err)
		return
	}

	fmt.Println(m.Status())
	// Output: Stopped
}

// Example_withEventHandler shows how to receive muxship events.
func Example_withEventHandler() {
	cfg := muxship.DefaultConfig()
	cfg.Addr = "collector.internal:9000"

	m, err := muxship.New(cfg, muxship.WithEventHandler(&printingHandler{}))
	if err != nil {
		fmt.Printf("failed to create muxship: %v\n", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = m.Start(ctx)
	_ = m.Stop()
}

type printingHandler struct {
	muxship.BaseEventHandler
}

func (h *printingHandler) OnStateChange(event muxship.StateChangeEvent) {
	fmt.Printf("state changed: %s -> %s (%s)\n", event.Previous, event.Current, event.Reason)
}

func (h *printingHandler) OnWriteError(event muxship.WriteErrorEvent) {
	fmt.Printf("write failed on reporter %d, %d payloads requeued\n", event.ReporterID, event.Discarded)
}
