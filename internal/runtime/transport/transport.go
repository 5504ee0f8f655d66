// Package transport carries DevTools frames between the client and the
// browser. A Transport is a bidirectional frame pipe; the connection owns it
// exclusively and the message pump is its only reader.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrReadTimeout is returned by Recv when no frame arrived within the
	// timeout. The pump treats it as "poll again".
	ErrReadTimeout = errors.New("transport: read timeout")
	// ErrWouldBlock is returned by a non-blocking Recv (timeout <= 0) when no
	// frame is buffered.
	ErrWouldBlock = errors.New("transport: no data available")
	// ErrClosed is returned once the transport has been closed.
	ErrClosed = errors.New("transport: closed")
)

// Transport is a full-duplex frame pipe.
type Transport interface {
	// Send writes one frame.
	Send(ctx context.Context, frame []byte) error
	// Recv returns the next frame, waiting at most timeout. A timeout <= 0
	// never blocks.
	Recv(timeout time.Duration) ([]byte, error)
	// Close releases the transport. Closing twice is a no-op.
	Close() error
}

// recvFrom implements the shared Recv contract over a frame channel. A
// closed channel reports failure() once, when set, then ErrClosed.
func recvFrom(frames <-chan []byte, timeout time.Duration, failure func() error) ([]byte, error) {
	closed := func() ([]byte, error) {
		if failure != nil {
			if err := failure(); err != nil {
				return nil, err
			}
		}
		return nil, ErrClosed
	}

	if timeout <= 0 {
		select {
		case frame, ok := <-frames:
			if !ok {
				return closed()
			}
			return frame, nil
		default:
			return nil, ErrWouldBlock
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame, ok := <-frames:
		if !ok {
			return closed()
		}
		return frame, nil
	case <-timer.C:
		return nil, ErrReadTimeout
	}
}
