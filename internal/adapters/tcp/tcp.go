// Package tcp dials the peer over plain TCP.
package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/muxship/internal/ports"
	"github.com/bft-labs/muxship/pkg/log"
)

// Dialer implements ports.Dialer over TCP.
type Dialer struct {
	addr    string
	timeout time.Duration
	log     log.Logger
}

// NewDialer creates a dialer for addr. A zero timeout means no dial timeout.
func NewDialer(addr string, timeout time.Duration, logger log.Logger) *Dialer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Dialer{
		addr:    addr,
		timeout: timeout,
		log:     logger.With(log.String("component", "tcp")),
	}
}

// Dial connects to the configured address.
func (d *Dialer) Dial(ctx context.Context) (ports.Conn, error) {
	nd := net.Dialer{Timeout: d.timeout}
	c, err := nd.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.addr, err)
	}
	return newConn(c, d.log), nil
}

// Conn wraps an established net.Conn.
type Conn struct {
	conn      net.Conn
	log       log.Logger
	closeOnce sync.Once
	closeErr  error
}

func newConn(c net.Conn, logger log.Logger) *Conn {
	conn := &Conn{conn: c, log: logger}
	go conn.readLoop()
	return conn
}

// WriteHalf returns the connection itself; CloseWrite half-closes the socket.
func (c *Conn) WriteHalf() ports.WriteHalf {
	return c
}

// Write writes p to the socket.
func (c *Conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// CloseWrite shuts down the write direction so the peer reads EOF.
func (c *Conn) CloseWrite() error {
	if hc, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return c.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the socket. Safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// readLoop discards anything the peer sends. Once the peer is gone the socket
// is closed so that the next write fails.
func (c *Conn) readLoop() {
	n, err := io.Copy(io.Discard, c.conn)
	if err != nil {
		c.log.Debug("peer read ended", log.Err(err))
	}
	if n > 0 {
		c.log.Debug("discarded unexpected peer data", log.Int("bytes", int(n)))
	}
	_ = c.Close()
}
