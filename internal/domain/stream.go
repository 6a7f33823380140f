package domain

import "strconv"

// Stream identifies one logical data stream multiplexed over the connection.
// It is a correlation key only; the sender returns it unchanged in status reports.
type Stream uint16

// Payload is one contiguous write unit. It is never mutated after it has been
// handed to the sender.
type Payload []byte

// SessionID identifies a logical session. It is stable across reconnects, so a
// replacement sender carries the id of the one it replaces.
type SessionID uint64

// String renders the id in decimal.
func (s SessionID) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Outcome is the result of writing one payload to the socket.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeErr
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "Ok"
	case OutcomeErr:
		return "Err"
	default:
		return "Unknown"
	}
}

// StreamStatus reports the outcome of one payload write for the stream it carried.
type StreamStatus struct {
	Stream  Stream
	Outcome Outcome
}

// StatusOK builds an Ok status for stream.
func StatusOK(stream Stream) StreamStatus {
	return StreamStatus{Stream: stream, Outcome: OutcomeOK}
}

// StatusErr builds an Err status for stream.
func StatusErr(stream Stream) StreamStatus {
	return StreamStatus{Stream: stream, Outcome: OutcomeErr}
}

// OK reports whether the write succeeded.
func (s StreamStatus) OK() bool {
	return s.Outcome == OutcomeOK
}
