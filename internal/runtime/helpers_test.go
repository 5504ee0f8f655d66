package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/cdpflow/internal/runtime/config"
	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
	transportpkg "github.com/drblury/cdpflow/internal/runtime/transport"
)

const waitFor = 2 * time.Second

func init() {
	recvErrorBackoff = time.Millisecond
}

func testConfig() *configpkg.Config {
	return &configpkg.Config{
		DebuggingID:    "test",
		DefaultTimeout: waitFor,
		ReadTimeout:    10 * time.Millisecond,
	}
}

// newTestConnection returns a connection over a loopback transport and the
// peer playing the browser.
func newTestConnection(t *testing.T, opts ...func(*configpkg.Config, *Dependencies)) (*Connection, *transportpkg.Peer) {
	t.Helper()

	lb, err := transportpkg.NewLoopback(nil)
	require.NoError(t, err)

	conf := testConfig()
	deps := Dependencies{Transport: lb}
	for _, opt := range opts {
		opt(conf, &deps)
	}

	conn, err := New(conf, loggingpkg.Discard(), deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = lb.Close()
	})
	return conn, lb.Peer()
}

func readRequest(t *testing.T, peer *transportpkg.Peer) protocol.Request {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	frame, err := peer.Recv(ctx)
	require.NoError(t, err)

	var req protocol.Request
	require.NoError(t, jsoncodec.Unmarshal(frame, &req))
	return req
}

func sendFrame(t *testing.T, peer *transportpkg.Peer, frame string) {
	t.Helper()
	require.NoError(t, peer.SendString(context.Background(), frame))
}

func respond(t *testing.T, peer *transportpkg.Peer, id int64, result map[string]any) {
	t.Helper()
	frame, err := jsoncodec.Marshal(protocol.Message{ID: protocol.Int64(id), Result: result})
	require.NoError(t, err)
	require.NoError(t, peer.Send(context.Background(), frame))
}

// serve answers every request with handle until the test ends.
func serve(t *testing.T, peer *transportpkg.Peer, handle func(protocol.Request) map[string]any) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})

	go func() {
		defer close(done)
		for {
			frame, err := peer.Recv(ctx)
			if err != nil {
				return
			}
			var req protocol.Request
			if err := jsoncodec.Unmarshal(frame, &req); err != nil {
				return
			}
			out, err := jsoncodec.Marshal(protocol.Message{ID: protocol.Int64(req.ID), Result: handle(req)})
			if err != nil {
				return
			}
			if err := peer.Send(ctx, out); err != nil {
				return
			}
		}
	}()
}

type recorder struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recorder) handle(msg protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Method)
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}
