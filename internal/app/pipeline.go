package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bft-labs/muxship/internal/adapters/fs"
	"github.com/bft-labs/muxship/internal/adapters/tcp"
	"github.com/bft-labs/muxship/internal/adapters/websocket"
	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/ports"
	"github.com/bft-labs/muxship/internal/stage"
	"github.com/bft-labs/muxship/internal/worker"
	"github.com/bft-labs/muxship/pkg/log"
)

// Transports understood by the default dialer.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// MaxStreams is the size of the stream id space shared by all reporters.
const MaxStreams = 1 << 16

// PipelineConfig sizes and locates a pipeline.
type PipelineConfig struct {
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

	// SessionID pins the session id; nil reuses the saved one.
	SessionID *domain.SessionID
}

// Validate checks the sizing of the stream space.
func (c PipelineConfig) Validate() error {
	switch {
	case c.Reporters < 1 || c.Reporters > 256:
		return fmt.Errorf("%w: reporters must be within 1..256, got %d", domain.ErrInvalidConfig, c.Reporters)
	case c.StreamsPerReporter < 1:
		return fmt.Errorf("%w: streams per reporter must be positive", domain.ErrInvalidConfig)
	case c.Reporters*c.StreamsPerReporter > MaxStreams:
		return fmt.Errorf("%w: %d reporters x %d streams exceeds %d stream ids",
			domain.ErrInvalidConfig, c.Reporters, c.StreamsPerReporter, MaxStreams)
	}
	return nil
}

// Option configures optional collaborators of a Pipeline.
type Option func(*options)

type options struct {
	logger   log.Logger
	observer ports.Observer
	emitter  StateEmitter
	dialer   ports.Dialer
	repo     ports.SessionRepository
	clock    clockwork.Clock
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the sender observer, typically the metrics collector.
func WithObserver(obs ports.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithEmitter sets the receiver of lifecycle state changes.
func WithEmitter(e StateEmitter) Option {
	return func(o *options) { o.emitter = e }
}

// WithDialer replaces the dialer derived from Transport and Addr.
func WithDialer(d ports.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithRepository replaces the session file in StateDir.
func WithRepository(r ports.SessionRepository) Option {
	return func(o *options) { o.repo = r }
}

// WithClock sets the clock used for backoff and timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Pipeline wires reporters, the supervisor and the spool worker together and
// runs them under one lifecycle.
type Pipeline struct {
	cfg       PipelineConfig
	opts      options
	lifecycle *Lifecycle
	log       log.Logger

	mu sync.Mutex
}

// NewPipeline validates cfg and returns a stopped pipeline.
func NewPipeline(cfg PipelineConfig, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:   log.NewNoopLogger(),
		observer: ports.NoopObserver{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.dialer == nil {
		switch cfg.Transport {
		case TransportTCP, "":
			o.dialer = tcp.NewDialer(cfg.Addr, cfg.DialTimeout, o.logger)
		case TransportWebSocket:
			o.dialer = websocket.NewDialer(cfg.Addr, cfg.DialTimeout, o.logger)
		default:
			return nil, fmt.Errorf("%w: unknown transport %q", domain.ErrInvalidConfig, cfg.Transport)
		}
	}
	if o.repo == nil && cfg.StateDir != "" {
		o.repo = fs.NewSessionFileRepository(cfg.StateDir)
	}

	return &Pipeline{
		cfg:       cfg,
		opts:      o,
		lifecycle: NewLifecycle(o.logger, o.emitter, o.clock),
		log:       o.logger.With(log.String("component", "pipeline")),
	}, nil
}

// Start launches the pipeline in the background. It moves to Running once
// the first connection is established.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := p.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.lifecycle.SetCancel(cancel)

	reporters, registry := p.buildReporters()

	sup, err := stage.NewSupervisor(stage.SupervisorConfig{
		Dialer:     p.opts.dialer,
		Repository: p.opts.repo,
		Reporters:  registry,
		Backoff:    NewBackoff(p.cfg.ReconnectInitial, p.cfg.ReconnectMax, p.opts.clock),
		SessionID:  p.cfg.SessionID,
		Clock:      p.opts.clock,
		Observer:   p.opts.observer,
		Logger:     p.opts.logger,
		OnConnected: func(string) {
			if p.lifecycle.State() == StateStarting {
				_ = p.lifecycle.TransitionTo(StateRunning, "connected")
			}
		},
	})
	if err != nil {
		cancel()
		_ = p.lifecycle.TransitionTo(StateCrashed, err.Error())
		return err
	}

	for _, r := range reporters {
		r := r
		p.lifecycle.Go(func() { r.Run(runCtx) })
	}

	p.lifecycle.Go(func() {
		if err := sup.Run(runCtx); err != nil {
			p.fail(err)
		}
	})

	if p.cfg.SpoolDir != "" {
		targets := make([]worker.Submitter, len(reporters))
		for i, r := range reporters {
			targets[i] = r
		}
		spool := worker.NewSpool(p.cfg.SpoolDir, targets, p.opts.logger)
		p.lifecycle.Go(func() {
			if err := spool.Run(runCtx); err != nil {
				p.fail(err)
			}
		})
	}

	p.log.Info("pipeline started",
		log.Int("reporters", len(reporters)),
		log.Int("streams_per_reporter", p.cfg.StreamsPerReporter))
	return nil
}

func (p *Pipeline) buildReporters() ([]*stage.Reporter, stage.Reporters) {
	reporters := make([]*stage.Reporter, p.cfg.Reporters)
	registry := make(stage.Reporters, p.cfg.Reporters)
	for i := range reporters {
		r := stage.NewReporter(stage.ReporterConfig{
			ID:          uint8(i),
			FirstStream: domain.Stream(i * p.cfg.StreamsPerReporter),
			Streams:     p.cfg.StreamsPerReporter,
			MaxAttempts: p.cfg.MaxAttempts,
		}, p.opts.logger)
		reporters[i] = r
		registry[r.ID()] = r.Handle()
	}
	return reporters, registry
}

// fail cancels the pipeline after an unrecoverable component error.
func (p *Pipeline) fail(err error) {
	p.log.Error("pipeline component failed", log.Err(err))
	p.lifecycle.Cancel()
	_ = p.lifecycle.TransitionTo(StateCrashed, err.Error())
}

// Stop cancels the pipeline and waits up to ShutdownTimeout for it to drain.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.lifecycle.CanStop() {
		p.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := p.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		p.mu.Unlock()
		return err
	}
	p.lifecycle.Cancel()
	p.mu.Unlock()

	err := p.lifecycle.Wait(ShutdownTimeout)
	if err != nil {
		_ = p.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
	} else {
		_ = p.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
func (p *Pipeline) Status() State {
	return p.lifecycle.State()
}

// Wait blocks until every pipeline goroutine returned. Use it after the
// parent context of Start was canceled.
func (p *Pipeline) Wait() error {
	return p.lifecycle.Wait(ShutdownTimeout)
}
