// Package frame implements the producer-side framing for payloads that share
// one connection.
//
// Wire format for each frame:
//
//	[2 bytes: stream id, big-endian][4 bytes: body length, big-endian][N bytes: body]
//
// The sender writes payloads verbatim; framing is applied by whoever builds
// the payload, so the peer can split the byte stream back into streams.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bft-labs/muxship/internal/domain"
)

// HeaderSize is the fixed size of a frame header.
const HeaderSize = 6

// MaxBodySize bounds a single frame body.
const MaxBodySize = 64 << 20

// ErrTooLarge is returned for bodies larger than MaxBodySize.
var ErrTooLarge = errors.New("frame: body too large")

// Encode builds the payload for body on stream.
func Encode(stream domain.Stream, body []byte) (domain.Payload, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(body))
	}
	buf := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint16(buf[0:2], uint16(stream))
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	return buf, nil
}

// Frame is one decoded frame.
type Frame struct {
	Stream domain.Stream
	Body   []byte
}

// Reader splits a byte stream back into frames.
type Reader struct {
	r io.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next reads exactly one frame. It returns io.EOF on a clean end of stream and
// io.ErrUnexpectedEOF when the stream ends inside a frame.
func (fr *Reader) Next() (Frame, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}

	n := binary.BigEndian.Uint32(hdr[2:6])
	if n > MaxBodySize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}

	return Frame{
		Stream: domain.Stream(binary.BigEndian.Uint16(hdr[0:2])),
		Body:   body,
	}, nil
}
