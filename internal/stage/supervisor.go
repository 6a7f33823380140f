package stage

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/ports"
	"github.com/bft-labs/muxship/pkg/log"
)

// Backoff paces reconnect attempts.
type Backoff interface {
	// Wait sleeps for the next delay and reports false if ctx ended first.
	Wait(ctx context.Context) bool
	Reset()
}

// SupervisorConfig wires a supervisor. Dialer, Reporters and Backoff are required.
type SupervisorConfig struct {
	Dialer     ports.Dialer
	Repository ports.SessionRepository
	Reporters  Reporters
	Backoff    Backoff

	// SessionID pins the session. When nil the saved record is used, and a
	// fresh id is generated if there is none.
	SessionID *domain.SessionID

	Clock    clockwork.Clock
	Observer ports.Observer
	Logger   log.Logger

	// OnConnected is called after each successful dial. Optional.
	OnConnected func(addr string)
}

// Supervisor keeps one session alive across connections: it dials, runs a
// sender on the connection, waits for its exit notice and dials again.
type Supervisor struct {
	cfg SupervisorConfig
	log log.Logger

	record ports.SessionRecord
}

// NewSupervisor validates cfg and returns a supervisor.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	switch {
	case cfg.Dialer == nil:
		return nil, fmt.Errorf("supervisor: dialer: %w", domain.ErrMissingField)
	case cfg.Reporters == nil:
		return nil, fmt.Errorf("supervisor: reporters: %w", domain.ErrMissingField)
	case cfg.Backoff == nil:
		return nil, fmt.Errorf("supervisor: backoff: %w", domain.ErrMissingField)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Observer == nil {
		cfg.Observer = ports.NoopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	return &Supervisor{
		cfg: cfg,
		log: cfg.Logger.With(log.String("component", "supervisor")),
	}, nil
}

// SessionID returns the session served. It is valid once Run has started.
func (s *Supervisor) SessionID() domain.SessionID {
	return s.record.SessionID
}

// Run serves the session until ctx is done. It returns an error only when a
// sender can not be built.
func (s *Supervisor) Run(ctx context.Context) error {
	s.resolveSession(ctx)
	logger := s.log.With(log.Session(uint64(s.record.SessionID)))
	logger.Info("supervisor started", log.Int("reporters", len(s.cfg.Reporters)))

	announced := false
	for ctx.Err() == nil {
		conn, err := s.cfg.Dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("dial failed", log.Err(err))
			if !s.cfg.Backoff.Wait(ctx) {
				break
			}
			continue
		}

		s.record.Connections++
		logger.Info("connected", log.String("remote", conn.RemoteAddr()), log.Uint64("connection", s.record.Connections))
		if s.cfg.OnConnected != nil {
			s.cfg.OnConnected(conn.RemoteAddr())
		}

		exit, err := s.serve(ctx, conn, announced)
		_ = conn.Close()
		if err != nil {
			return err
		}
		announced = true

		s.record.LastCheckPointAt = s.cfg.Clock.Now().UTC()
		s.save(ctx)

		if exit.Err != nil {
			logger.Warn("connection lost", log.Int("written", exit.Written), log.Err(exit.Err))
		} else {
			logger.Info("connection closed", log.Int("written", exit.Written))
		}
		if exit.Written > 0 {
			s.cfg.Backoff.Reset()
		}
		if ctx.Err() != nil || !s.cfg.Backoff.Wait(ctx) {
			break
		}
	}

	logger.Info("supervisor stopped", log.Uint64("connections", s.record.Connections))
	return nil
}

// serve runs one sender over conn and waits for it to report its exit.
func (s *Supervisor) serve(ctx context.Context, conn ports.Conn, reconnect bool) (SenderExited, error) {
	tx, rx := NewSenderChannel()
	stageTx, stageRx := NewSupervisorChannel()
	defer stageTx.Drop()

	if !reconnect {
		// The very first sender is announced here, the builder handles the rest.
		s.announce(tx)
	}

	state, err := NewSenderBuilder().
		Tx(tx).
		Rx(rx).
		StageTx(stageTx).
		SocketTx(conn.WriteHalf()).
		Reporters(s.cfg.Reporters).
		SessionID(s.record.SessionID).
		Reconnect(reconnect).
		Logger(s.cfg.Logger).
		Observer(s.cfg.Observer).
		Build()
	if err != nil {
		tx.Drop()
		rx.Close()
		return SenderExited{}, err
	}

	go func() { _ = state.Run(ctx) }()

	for {
		ev, ok := stageRx.Recv(context.Background())
		if !ok {
			return SenderExited{SessionID: s.record.SessionID}, nil
		}
		if exit, ok := ev.(SenderExited); ok {
			return exit, nil
		}
	}
}

func (s *Supervisor) announce(tx *SenderTx) {
	for _, id := range s.cfg.Reporters.IDs() {
		clone := tx.Clone()
		if err := s.cfg.Reporters[id].Send(SessionEvent{Session: NewSession(s.record.SessionID, clone)}); err != nil {
			clone.Drop()
			s.log.Warn("reporter unreachable, skipping session announcement",
				log.Reporter(id), log.Err(err))
		}
	}
}

// resolveSession picks the session id: pinned, then saved, then generated.
func (s *Supervisor) resolveSession(ctx context.Context) {
	if s.cfg.Repository != nil {
		rec, err := s.cfg.Repository.Load(ctx)
		if err != nil {
			s.log.Error("failed to load session record", log.Err(err))
		} else {
			s.record = rec
		}
	}

	switch {
	case s.cfg.SessionID != nil:
		if s.record.SessionID != *s.cfg.SessionID {
			s.record = ports.SessionRecord{SessionID: *s.cfg.SessionID}
		}
	case s.record.SessionID == 0:
		s.record = ports.SessionRecord{SessionID: NewSessionID()}
		s.log.Info("generated session id", log.Session(uint64(s.record.SessionID)))
	}

	s.save(ctx)
}

func (s *Supervisor) save(ctx context.Context) {
	if s.cfg.Repository == nil {
		return
	}
	if err := s.cfg.Repository.Save(ctx, s.record); err != nil {
		s.log.Error("failed to save session record", log.Err(err))
	}
}

// NewSessionID derives a non-zero session id from a random UUID.
func NewSessionID() domain.SessionID {
	for {
		u := uuid.New()
		if id := binary.BigEndian.Uint64(u[:8]); id != 0 {
			return domain.SessionID(id)
		}
	}
}
