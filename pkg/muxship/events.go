package muxship

import (
	"github.com/bft-labs/muxship/internal/app"
	"github.com/bft-labs/muxship/internal/domain"
	"github.com/bft-labs/muxship/internal/ports"
)

// State is the lifecycle state of a Muxship instance.
type State = app.State

const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// CheckPointEvent reports that a connection of the session is fully closed.
type CheckPointEvent struct {
	SessionID uint64
}

// WriteErrorEvent reports a failed socket write. Discarded counts the queued
// payloads dropped with the connection; they are resent after reconnecting.
type WriteErrorEvent struct {
	ReporterID uint8
	Discarded  int
}

// EventHandler receives notifications about muxship operations.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnCheckPoint(event CheckPointEvent)
	OnWriteError(event WriteErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnCheckPoint(CheckPointEvent)   {}
func (BaseEventHandler) OnWriteError(WriteErrorEvent)   {}

// eventEmitterWrapper fans internal notifications out to the metrics
// collector and the user's handler.
type eventEmitterWrapper struct {
	handler  EventHandler
	observer ports.Observer
	emitter  app.StateEmitter

	// Only touched from the sender goroutine of the current connection.
	failedReporter uint8
	failed         bool
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.emitter != nil {
		e.emitter.OnStateChange(previous, current, reason)
	}
	if e.handler != nil {
		e.handler.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
	}
}

func (e *eventEmitterWrapper) PayloadWritten(reporterID uint8, n int) {
	if e.observer != nil {
		e.observer.PayloadWritten(reporterID, n)
	}
}

func (e *eventEmitterWrapper) PayloadFailed(reporterID uint8) {
	if e.observer != nil {
		e.observer.PayloadFailed(reporterID)
	}
	e.failedReporter, e.failed = reporterID, true
}

func (e *eventEmitterWrapper) PayloadsDiscarded(n int) {
	if e.observer != nil {
		e.observer.PayloadsDiscarded(n)
	}
	if e.handler != nil && e.failed {
		e.handler.OnWriteError(WriteErrorEvent{ReporterID: e.failedReporter, Discarded: n})
		e.failed = false
	}
}

func (e *eventEmitterWrapper) CheckPoint(session domain.SessionID) {
	if e.observer != nil {
		e.observer.CheckPoint(session)
	}
	if e.handler != nil {
		if e.failed {
			e.handler.OnWriteError(WriteErrorEvent{ReporterID: e.failedReporter})
		}
		e.handler.OnCheckPoint(CheckPointEvent{SessionID: uint64(session)})
	}
	e.failed = false
}

func (e *eventEmitterWrapper) SenderStarted(session domain.SessionID, reconnect bool) {
	if e.observer != nil {
		e.observer.SenderStarted(session, reconnect)
	}
}
