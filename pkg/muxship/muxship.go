package muxship

import (
	"context"
	"time"

	"github.com/bft-labs/muxship/internal/app"
	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/metrics"
	"github.com/bft-labs/muxship/internal/ports"
	"github.com/bft-labs/muxship/pkg/log"
)

// Errors returned by New, Start and Stop. Check them with errors.Is.
var (
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
)

// Transports accepted in Config.Transport.
const (
	TransportTCP       = app.TransportTCP
	TransportWebSocket = app.TransportWebSocket
)

// Config locates the peer and the spool and sizes the stream space.
type Config struct {
	// Addr is host:port for tcp or a ws:// or wss:// URL for websocket.
	Addr        string
	Transport   string
	DialTimeout time.Duration

	// SpoolDir is watched for payload files. Empty disables the spool.
	SpoolDir string

	// StateDir holds status.json. Empty keeps the session in memory only.
	StateDir string

	Reporters          int
	StreamsPerReporter int

	// MaxAttempts bounds deliveries per payload; zero retries forever.
	MaxAttempts int

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// SessionID pins the session id when non-zero.
	SessionID uint64
}

// DefaultConfig returns a tcp configuration with 4 reporters of 64 streams.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Transport == "" {
		c.Transport = TransportTCP
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.Reporters == 0 {
		c.Reporters = 4
	}
	if c.StreamsPerReporter == 0 {
		c.StreamsPerReporter = 64
	}
	if c.ReconnectInitial == 0 {
		c.ReconnectInitial = app.DefaultBackoffInitial
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = app.DefaultBackoffMax
	}
}

// Validate checks the configuration after defaults were applied.
func (c Config) Validate() error {
	return c.pipelineConfig().Validate()
}

func (c Config) pipelineConfig() app.PipelineConfig {
	pc := app.PipelineConfig{
		Addr:               c.Addr,
		Transport:          c.Transport,
		DialTimeout:        c.DialTimeout,
		SpoolDir:           c.SpoolDir,
		StateDir:           c.StateDir,
		Reporters:          c.Reporters,
		StreamsPerReporter: c.StreamsPerReporter,
		MaxAttempts:        c.MaxAttempts,
		ReconnectInitial:   c.ReconnectInitial,
		ReconnectMax:       c.ReconnectMax,
	}
	if c.SessionID != 0 {
		id := domain.SessionID(c.SessionID)
		pc.SessionID = &id
	}
	return pc
}

// Muxship ships spooled payloads to one peer. Use New to create an instance,
// then Start to begin shipping.
type Muxship struct {
	config   Config
	pipeline *app.Pipeline
	logger   log.Logger
}

// New creates a stopped instance. It returns an error wrapping
// ErrInvalidConfig when cfg can not be used.
func New(cfg Config, opts ...Option) (*Muxship, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	if o.registerer != nil {
		c := metrics.New(o.registerer)
		emitter.observer = c
		emitter.emitter = c
	}

	pipelineOpts := []app.Option{
		app.WithLogger(o.logger),
		app.WithObserver(emitter),
		app.WithEmitter(emitter),
	}
	if o.dialer != nil {
		pipelineOpts = append(pipelineOpts, app.WithDialer(o.dialer))
	}
	if o.repository != nil {
		pipelineOpts = append(pipelineOpts, app.WithRepository(o.repository))
	}

	p, err := app.NewPipeline(cfg.pipelineConfig(), pipelineOpts...)
	if err != nil {
		return nil, err
	}

	return &Muxship{config: cfg, pipeline: p, logger: o.logger}, nil
}

// Start begins shipping in the background and returns immediately. The
// instance stays Starting until the first connection is established. ctx
// bounds the lifetime of every background goroutine.
func (m *Muxship) Start(ctx context.Context) error {
	return m.pipeline.Start(ctx)
}

// Stop closes the current connection gracefully and waits for the pipeline
// to finish. Payloads still queued are written before the connection closes.
func (m *Muxship) Stop() error {
	return m.pipeline.Stop()
}

// Wait blocks until the background goroutines returned after the context
// passed to Start was canceled.
func (m *Muxship) Wait() error {
	return m.pipeline.Wait()
}

// Status returns the current lifecycle state.
func (m *Muxship) Status() State {
	return m.pipeline.Status()
}

// Config returns the effective configuration, defaults included.
func (m *Muxship) Config() Config {
	return m.config
}

var _ ports.Observer = (*eventEmitterWrapper)(nil)
