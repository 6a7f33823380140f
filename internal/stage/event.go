package stage

import (
	"sort"

	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/mailbox"
)

// Event is what producers enqueue for the sender. Payload is currently the
// only kind of event.
type Event struct {
	Stream     domain.Stream
	Payload    domain.Payload
	ReporterID uint8
}

// SenderTx is a cloneable handle for enqueueing events to a sender.
type SenderTx = mailbox.Sender[Event]

// SenderRx is the sender's own receive end.
type SenderRx = mailbox.Receiver[Event]

// NewSenderChannel creates the unbounded event queue of one sender instance.
func NewSenderChannel() (*SenderTx, *SenderRx) {
	return mailbox.New[Event]()
}

// ReporterEvent is delivered to a reporter's mailbox.
type ReporterEvent interface {
	isReporterEvent()
}

// StatusEvent carries the outcome of one payload write.
type StatusEvent struct {
	Status domain.StreamStatus
}

// SessionKind distinguishes session lifecycle notifications.
type SessionKind int

const (
	// SessionNew announces the handle of a sender now serving the session.
	SessionNew SessionKind = iota
	// SessionCheckPoint marks that the session's connection is fully closed.
	SessionCheckPoint
)

// String returns a human-readable representation of the kind.
func (k SessionKind) String() string {
	switch k {
	case SessionNew:
		return "New"
	case SessionCheckPoint:
		return "CheckPoint"
	default:
		return "Unknown"
	}
}

// Session is a session lifecycle notification. Tx is set for SessionNew only.
type Session struct {
	Kind SessionKind
	ID   domain.SessionID
	Tx   *SenderTx
}

// NewSession announces tx as the sender serving session id.
func NewSession(id domain.SessionID, tx *SenderTx) Session {
	return Session{Kind: SessionNew, ID: id, Tx: tx}
}

// CheckPoint marks the end of one connection of session id.
func CheckPoint(id domain.SessionID) Session {
	return Session{Kind: SessionCheckPoint, ID: id}
}

// SessionEvent carries a Session notification.
type SessionEvent struct {
	Session Session
}

// submitEvent carries work from a worker into its reporter.
type submitEvent struct {
	req Request
}

func (StatusEvent) isReporterEvent()  {}
func (SessionEvent) isReporterEvent() {}
func (submitEvent) isReporterEvent()  {}

// ReporterTx is a handle for delivering events to a reporter.
type ReporterTx = mailbox.Sender[ReporterEvent]

// ReporterRx is a reporter's own receive end.
type ReporterRx = mailbox.Receiver[ReporterEvent]

// Reporters maps reporter ids to reporter handles. It is built once by the
// supervisor and only read afterwards.
type Reporters map[uint8]*ReporterTx

// IDs returns the registered ids in ascending order.
func (r Reporters) IDs() []uint8 {
	ids := make([]uint8, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SupervisorEvent is delivered to the supervisor's mailbox.
type SupervisorEvent interface {
	isSupervisorEvent()
}

// SenderExited is posted by a sender after its checkpoint broadcast.
type SenderExited struct {
	SessionID domain.SessionID
	Written   int
	Err       error
}

func (SenderExited) isSupervisorEvent() {}

// SupervisorTx is a handle for delivering events to the supervisor.
type SupervisorTx = mailbox.Sender[SupervisorEvent]

// SupervisorRx is the supervisor's receive end.
type SupervisorRx = mailbox.Receiver[SupervisorEvent]

// NewSupervisorChannel creates the supervisor's event queue.
func NewSupervisorChannel() (*SupervisorTx, *SupervisorRx) {
	return mailbox.New[SupervisorEvent]()
}
