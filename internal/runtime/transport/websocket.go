package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// DefaultReadLimit bounds a single inbound frame. Screenshots and DOM
// snapshots easily exceed the library default of 32KiB.
const DefaultReadLimit = 64 << 20

// Conn is the subset of *websocket.Conn used by the transport, so tests can
// supply a scripted connection.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// WebSocketOptions tunes DialWebSocket.
type WebSocketOptions struct {
	// ReadLimit bounds one inbound frame. Zero means DefaultReadLimit.
	ReadLimit int64
	// Buffer is the number of frames read ahead of the pump. Zero means 256.
	Buffer int
	// DialTimeout bounds the opening handshake. Zero means no extra bound.
	DialTimeout time.Duration
}

// DialFunc opens the underlying socket. Overridable in tests.
var DialFunc = func(ctx context.Context, url string, readLimit int64) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// WebSocket is a Transport over a DevTools debugger socket.
//
// A dedicated goroutine owns Read and feeds a buffered channel; Recv waits on
// that channel. Cancelling a websocket.Conn read tears the socket down, so
// per-call read timeouts are applied to the channel instead.
type WebSocket struct {
	conn   Conn
	frames chan []byte
	cancel context.CancelFunc

	closed   atomic.Bool
	once     sync.Once
	done     chan struct{}
	failMu   sync.Mutex
	failure  error
	reported bool
}

// DialWebSocket connects to a debugger URL such as
// ws://localhost:9222/devtools/page/<id>.
func DialWebSocket(ctx context.Context, url string, opts WebSocketOptions) (*WebSocket, error) {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	conn, err := DialFunc(ctx, url, opts.ReadLimit)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWebSocket(conn, opts.Buffer), nil
}

// NewWebSocket wraps an open connection and starts its reader.
func NewWebSocket(conn Conn, buffer int) *WebSocket {
	if buffer <= 0 {
		buffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	ws := &WebSocket{
		conn:   conn,
		frames: make(chan []byte, buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go ws.readLoop(ctx)
	return ws
}

func (w *WebSocket) readLoop(ctx context.Context) {
	defer close(w.done)
	defer close(w.frames)

	for {
		_, data, err := w.conn.Read(ctx)
		if err != nil {
			if !w.closed.Load() && !isNormalClosure(err) {
				w.failMu.Lock()
				w.failure = err
				w.failMu.Unlock()
			}
			return
		}
		select {
		case w.frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func isNormalClosure(err error) bool {
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure
}

// takeFailure returns the reader's terminal error exactly once.
func (w *WebSocket) takeFailure() error {
	w.failMu.Lock()
	defer w.failMu.Unlock()
	if w.failure == nil || w.reported {
		return nil
	}
	w.reported = true
	return w.failure
}

// Send writes a text frame.
func (w *WebSocket) Send(ctx context.Context, frame []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	return w.conn.Write(ctx, websocket.MessageText, frame)
}

// Recv returns the next inbound frame. After the socket fails, the failure
// is reported once and every later call returns ErrClosed.
func (w *WebSocket) Recv(timeout time.Duration) ([]byte, error) {
	if w.closed.Load() {
		return nil, ErrClosed
	}
	return recvFrom(w.frames, timeout, w.takeFailure)
}

// Close performs the closing handshake and stops the reader.
func (w *WebSocket) Close() error {
	var err error
	w.once.Do(func() {
		w.closed.Store(true)
		err = w.conn.Close(websocket.StatusNormalClosure, "")
		w.cancel()
		<-w.done
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	})
	return err
}
