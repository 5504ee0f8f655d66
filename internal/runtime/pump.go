package runtime

import (
	"errors"
	"fmt"
	"time"

	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
	transportpkg "github.com/drblury/cdpflow/internal/runtime/transport"
)

// recvErrorBackoff spaces out reads after an unexpected transport error.
var recvErrorBackoff = 100 * time.Millisecond

// run is the message pump. It reads until the transport is detached by
// Close or reports ErrClosed.
func (c *Connection) run() {
	defer close(c.done)

	for {
		t := c.currentTransport()
		if t == nil {
			return
		}

		frame, err := t.Recv(c.readTimeout)
		if err != nil {
			switch {
			case errors.Is(err, transportpkg.ErrReadTimeout), errors.Is(err, transportpkg.ErrWouldBlock):
				continue
			case errors.Is(err, transportpkg.ErrClosed):
				c.debug.Debug("Transport closed, stopping message pump", nil)
				return
			}
			if c.Closed() {
				return
			}
			c.capture(&errspkg.TransportError{Op: "recv", Origin: c.DebuggingID(), Err: err})
			select {
			case <-time.After(recvErrorBackoff):
			case <-c.closing:
			}
			continue
		}

		c.debug.Debug("Received message", loggingpkg.LogFields{"frame": string(frame)})
		c.dispatchFrame(frame)
	}
}

// dispatchFrame splits a frame into its documents and dispatches each in
// order. Documents decoded before a syntax error are still dispatched.
func (c *Connection) dispatchFrame(frame []byte) {
	msgs, err := protocol.SplitFrame(frame)
	for _, msg := range msgs {
		c.dispatch(msg)
	}
	if err != nil {
		c.capture(&errspkg.TransportError{Op: "decode", Origin: c.DebuggingID(), Err: err})
	}
}

// dispatch hands msg to a snapshot of the registry. A failing handler does
// not stop the ones after it.
func (c *Connection) dispatch(msg protocol.Message) {
	c.dispatched.Add(1)
	c.metrics.recordDispatch()

	for _, h := range c.handlers.Snapshot() {
		if err := invoke(h, msg); err != nil {
			c.metrics.recordHandlerFault(h.Name)
			c.debug.Debug("Event handler failed", loggingpkg.LogFields{
				"handler": h.Name,
				"method":  msg.Method,
				"error":   err.Error(),
			})
			c.capture(&errspkg.HandlerFaultError{Handler: h.Name, Origin: c.DebuggingID(), Err: err})
		}
	}
}

// invoke runs one handler, converting a panic into an error.
func invoke(h RegisteredHandler, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handler(msg)
}

func (c *Connection) capture(err error) {
	c.relay.Capture(err)
}
