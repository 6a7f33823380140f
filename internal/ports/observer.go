package ports

import "github.com/bft-labs/muxship/internal/domain"

// Observer is notified of sender outcomes. Calls are made synchronously from
// the sender's run loop and must return quickly.
type Observer interface {
	PayloadWritten(reporterID uint8, bytes int)
	PayloadFailed(reporterID uint8)
	PayloadsDiscarded(n int)
	CheckPoint(session domain.SessionID)
	SenderStarted(session domain.SessionID, reconnect bool)
}

// NoopObserver discards every notification.
type NoopObserver struct{}

func (NoopObserver) PayloadWritten(uint8, int)            {}
func (NoopObserver) PayloadFailed(uint8)                  {}
func (NoopObserver) PayloadsDiscarded(int)                {}
func (NoopObserver) CheckPoint(domain.SessionID)          {}
func (NoopObserver) SenderStarted(domain.SessionID, bool) {}
