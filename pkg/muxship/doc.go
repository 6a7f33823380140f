// Package muxship provides an embeddable shipper that multiplexes many
// payload streams over one connection to a single peer.
//
// # Basic Usage
//
//	cfg := muxship.DefaultConfig()
//	cfg.Addr = "collector:9000"
//	cfg.SpoolDir = "/var/spool/muxship"
//
//	m, err := muxship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := m.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// Every file published into SpoolDir (write to a *.tmp name, then rename)
// becomes one framed payload. Delivered files are removed; files that run
// out of attempts are moved to SpoolDir/failed.
//
// # Sessions
//
// One session spans many connections. When a connection breaks, payloads
// that were not written are resent on the next connection of the same
// session. The session id is kept in StateDir/status.json across restarts.
//
// # Event Handling
//
// Implement [EventHandler] (embed [BaseEventHandler] for no-op defaults) and
// pass it via [WithEventHandler]. Events are called synchronously from the
// pipeline goroutines and must return quickly.
//
// # Lifecycle States
//
// An instance is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. It becomes Running once the first
// connection is established.
package muxship
