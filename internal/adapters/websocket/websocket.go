// Package websocket dials the peer over a WebSocket. Every payload travels
// as one binary message; the stream ends with a normal closure.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/bft-labs/muxship/internal/ports"
	"github.com/bft-labs/muxship/pkg/log"
)

// Dialer implements ports.Dialer over WebSocket.
type Dialer struct {
	url     string
	timeout time.Duration
	log     log.Logger
}

// NewDialer creates a dialer for a ws:// or wss:// url.
func NewDialer(url string, timeout time.Duration, logger log.Logger) *Dialer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Dialer{
		url:     url,
		timeout: timeout,
		log:     logger.With(log.String("component", "websocket")),
	}
}

// Dial performs the WebSocket handshake.
func (d *Dialer) Dial(ctx context.Context) (ports.Conn, error) {
	dialCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	c, _, err := websocket.Dial(dialCtx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.url, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		conn:   c,
		url:    d.url,
		ctx:    connCtx,
		cancel: cancel,
	}
	// Control frames are handled by the read side; data from the peer is not expected.
	c.CloseRead(connCtx)
	return conn, nil
}

// Conn is an established WebSocket connection.
type Conn struct {
	conn      *websocket.Conn
	url       string
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// WriteHalf returns the connection itself.
func (c *Conn) WriteHalf() ports.WriteHalf {
	return c
}

// Write sends p as a single binary message.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.conn.Write(c.ctx, websocket.MessageBinary, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CloseWrite performs the closing handshake.
func (c *Conn) CloseWrite() error {
	return c.conn.Close(websocket.StatusNormalClosure, "checkpoint")
}

// RemoteAddr returns the dialed url.
func (c *Conn) RemoteAddr() string {
	return c.url
}

// Close tears the connection down without a handshake. Safe to call
// multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.CloseNow()
	})
	return nil
}
