package muxship

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/muxship/internal/ports"
	"github.com/bft-labs/muxship/pkg/log"
)

// Connection types for custom transports.
type (
	// Dialer establishes connections to the peer.
	Dialer = ports.Dialer

	// Conn is an established connection.
	Conn = ports.Conn

	// WriteHalf is the write side of a connection.
	WriteHalf = ports.WriteHalf

	// SessionRepository persists the session record across restarts.
	SessionRepository = ports.SessionRepository

	// SessionRecord is the persisted session state.
	SessionRecord = ports.SessionRecord
)

// Option configures optional behavior of Muxship.
type Option func(*options)

type options struct {
	logger       log.Logger
	eventHandler EventHandler
	registerer   prometheus.Registerer
	dialer       Dialer
	repository   SessionRepository
}

// WithLogger sets a structured logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for muxship events.
// Events are called synchronously from the pipeline goroutines.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithRegisterer registers the muxship_* metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithDialer replaces the dialer built from Config.Transport and Config.Addr.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithSessionRepository replaces the session file kept in Config.StateDir.
func WithSessionRepository(r SessionRepository) Option {
	return func(o *options) {
		o.repository = r
	}
}
