package ports

import (
	"context"
	"io"
)

// WriteHalf is the write side of an established byte stream.
// Exactly one sender owns a WriteHalf at a time.
type WriteHalf interface {
	io.Writer

	// CloseWrite flushes and shuts down the write direction.
	CloseWrite() error
}

// Conn is an established connection.
type Conn interface {
	// WriteHalf returns the write side handed to the sender.
	WriteHalf() WriteHalf

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string

	// Close releases the whole connection. Safe to call more than once.
	Close() error
}

// Dialer establishes connections to the configured peer.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
