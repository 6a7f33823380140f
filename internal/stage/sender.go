package stage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/ports"
	"github.com/bft-labs/muxship/pkg/log"
)

// BuildError reports the first required collaborator missing from a SenderBuilder.
type BuildError struct {
	Field string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("sender builder: %s is required", e.Field)
}

// Unwrap allows errors.Is(err, domain.ErrMissingField).
func (e *BuildError) Unwrap() error {
	return domain.ErrMissingField
}

// SenderBuilder collects the collaborators of a sender. Every setter returns
// the builder for chaining; Build validates and produces the runnable state.
type SenderBuilder struct {
	tx        *SenderTx
	rx        *SenderRx
	stageTx   *SupervisorTx
	socketTx  ports.WriteHalf
	reporters Reporters
	sessionID *domain.SessionID
	reconnect bool

	logger   log.Logger
	observer ports.Observer
}

// NewSenderBuilder returns an empty builder with reconnect disabled.
func NewSenderBuilder() *SenderBuilder {
	return &SenderBuilder{}
}

// Tx sets the sender's own transmit handle. It is announced to reporters on reconnect.
func (b *SenderBuilder) Tx(tx *SenderTx) *SenderBuilder {
	b.tx = tx
	return b
}

// Rx sets the receive end the sender drains.
func (b *SenderBuilder) Rx(rx *SenderRx) *SenderBuilder {
	b.rx = rx
	return b
}

// StageTx sets the optional supervisor handle notified after termination.
func (b *SenderBuilder) StageTx(tx *SupervisorTx) *SenderBuilder {
	b.stageTx = tx
	return b
}

// SocketTx sets the write half the sender exclusively owns.
func (b *SenderBuilder) SocketTx(w ports.WriteHalf) *SenderBuilder {
	b.socketTx = w
	return b
}

// Reporters sets the registry used to route status and session notifications.
func (b *SenderBuilder) Reporters(r Reporters) *SenderBuilder {
	b.reporters = r
	return b
}

// SessionID sets the session this sender serves.
func (b *SenderBuilder) SessionID(id domain.SessionID) *SenderBuilder {
	b.sessionID = &id
	return b
}

// Reconnect marks the sender as the replacement of a previous one for the
// same session.
func (b *SenderBuilder) Reconnect(reconnect bool) *SenderBuilder {
	b.reconnect = reconnect
	return b
}

// Logger sets the logger. Defaults to a no-op logger.
func (b *SenderBuilder) Logger(l log.Logger) *SenderBuilder {
	b.logger = l
	return b
}

// Observer sets the metrics observer. Defaults to a no-op observer.
func (b *SenderBuilder) Observer(o ports.Observer) *SenderBuilder {
	b.observer = o
	return b
}

// Build validates the builder and returns the sender state.
//
// With reconnect set, every reporter in the registry is sent a SessionNew
// carrying a fresh clone of the transmit handle, so it resumes issuing
// payloads to this instance. A reporter that can no longer be reached is
// skipped.
func (b *SenderBuilder) Build() (*SenderState, error) {
	switch {
	case b.tx == nil:
		return nil, &BuildError{Field: "tx"}
	case b.rx == nil:
		return nil, &BuildError{Field: "rx"}
	case b.socketTx == nil:
		return nil, &BuildError{Field: "socket_tx"}
	case b.reporters == nil:
		return nil, &BuildError{Field: "reporters"}
	case b.sessionID == nil:
		return nil, &BuildError{Field: "session_id"}
	}

	logger := b.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	observer := b.observer
	if observer == nil {
		observer = ports.NoopObserver{}
	}

	s := &SenderState{
		reporters: b.reporters,
		sessionID: *b.sessionID,
		socket:    b.socketTx,
		stageTx:   b.stageTx,
		tx:        b.tx,
		rx:        b.rx,
		observer:  observer,
		log: logger.With(
			log.String("component", "sender"),
			log.Session(uint64(*b.sessionID)),
			log.String("instance", uuid.NewString()),
		),
	}

	if b.reconnect {
		for _, id := range s.reporters.IDs() {
			clone := s.tx.Clone()
			ev := SessionEvent{Session: NewSession(s.sessionID, clone)}
			if err := s.reporters[id].Send(ev); err != nil {
				clone.Drop()
				s.log.Warn("reporter unreachable, skipping session announcement",
					log.Reporter(id), log.Err(err))
			}
		}
	}
	observer.SenderStarted(s.sessionID, b.reconnect)

	return s, nil
}

// SenderState is a validated sender ready to run. It is consumed by Run.
type SenderState struct {
	reporters Reporters
	sessionID domain.SessionID
	socket    ports.WriteHalf
	stageTx   *SupervisorTx
	tx        *SenderTx
	rx        *SenderRx

	observer ports.Observer
	log      log.Logger
}

// Run drains the event queue, writing each payload to the socket in arrival
// order and reporting its outcome, until the queue is finished or a write
// fails. It then shuts the socket down and broadcasts a checkpoint to every
// reporter. The returned error is the write error that ended the run, if any.
//
// Cancelling ctx behaves like closing the queue: events already queued are
// still written, nothing new is accepted.
func (s *SenderState) Run(ctx context.Context) error {
	// Only producers keep the queue open from here on.
	s.tx.Drop()

	s.log.Info("sender running")

	var (
		written  int
		writeErr error
		recvCtx  = ctx
	)

	for {
		ev, ok := s.rx.Recv(recvCtx)
		if !ok {
			if recvCtx.Err() == nil {
				break
			}
			s.log.Info("sender canceled, draining queued payloads", log.Int("queued", s.rx.Len()))
			s.rx.Close()
			recvCtx = context.Background()
			continue
		}

		if _, err := s.socket.Write(ev.Payload); err != nil {
			writeErr = err
			s.observer.PayloadFailed(ev.ReporterID)
			s.notify(ev.ReporterID, domain.StatusErr(ev.Stream))
			s.log.Error("socket write failed",
				log.Stream(uint16(ev.Stream)),
				log.Reporter(ev.ReporterID),
				log.Err(err))
			// Producers learn the connection is gone through failed sends.
			s.rx.Close()
			if n := s.discard(); n > 0 {
				s.observer.PayloadsDiscarded(n)
				s.log.Warn("discarded queued payloads after write failure", log.Int("count", n))
			}
			break
		}

		written++
		s.observer.PayloadWritten(ev.ReporterID, len(ev.Payload))
		s.notify(ev.ReporterID, domain.StatusOK(ev.Stream))
	}

	if err := s.socket.CloseWrite(); err != nil {
		s.log.Warn("socket shutdown failed", log.Err(err))
	}

	for _, id := range s.reporters.IDs() {
		ev := SessionEvent{Session: CheckPoint(s.sessionID)}
		if err := s.reporters[id].Send(ev); err != nil {
			s.log.Warn("reporter unreachable, checkpoint not delivered",
				log.Reporter(id), log.Err(err))
		}
	}
	s.observer.CheckPoint(s.sessionID)

	s.log.Info("sender terminated", log.Int("written", written), log.Bool("failed", writeErr != nil))

	if s.stageTx != nil {
		exit := SenderExited{SessionID: s.sessionID, Written: written, Err: writeErr}
		if err := s.stageTx.Send(exit); err != nil {
			s.log.Warn("supervisor unreachable", log.Err(err))
		}
	}

	return writeErr
}

// notify routes a status to its reporter. An unknown id or a dead reporter is
// logged; the loop carries on.
func (s *SenderState) notify(id uint8, status domain.StreamStatus) {
	rep, ok := s.reporters[id]
	if !ok {
		s.log.Error("unknown reporter id", log.Reporter(id),
			log.Stream(uint16(status.Stream)))
		return
	}
	if err := rep.Send(StatusEvent{Status: status}); err != nil {
		s.log.Warn("reporter unreachable, status dropped",
			log.Reporter(id),
			log.Stream(uint16(status.Stream)),
			log.String("status", status.Outcome.String()),
			log.Err(err))
	}
}

// discard empties the closed queue without writing.
func (s *SenderState) discard() int {
	n := 0
	for {
		if _, ok := s.rx.TryRecv(); !ok {
			return n
		}
		n++
	}
}
