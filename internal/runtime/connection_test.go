package runtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/cdpflow/internal/runtime/config"
	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	transportpkg "github.com/drblury/cdpflow/internal/runtime/transport"
)

type recvStep struct {
	frame string
	err   error
}

// scriptedTransport replays steps from Recv once started, then idles until
// closed.
type scriptedTransport struct {
	mu      sync.Mutex
	steps   []recvStep
	sent    [][]byte
	started chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newScriptedTransport(steps ...recvStep) *scriptedTransport {
	return &scriptedTransport{steps: steps, started: make(chan struct{}), closed: make(chan struct{})}
}

func (s *scriptedTransport) start() {
	close(s.started)
}

func (s *scriptedTransport) Send(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, frame)
	return nil
}

func (s *scriptedTransport) Recv(timeout time.Duration) ([]byte, error) {
	select {
	case <-s.closed:
		return nil, transportpkg.ErrClosed
	case <-s.started:
	case <-time.After(timeout):
		return nil, transportpkg.ErrReadTimeout
	}

	s.mu.Lock()
	if len(s.steps) > 0 {
		step := s.steps[0]
		s.steps = s.steps[1:]
		s.mu.Unlock()
		if step.err != nil {
			return nil, step.err
		}
		return []byte(step.frame), nil
	}
	s.mu.Unlock()

	select {
	case <-s.closed:
		return nil, transportpkg.ErrClosed
	case <-time.After(timeout):
		return nil, transportpkg.ErrReadTimeout
	}
}

func (s *scriptedTransport) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func newScriptedConnection(t *testing.T, steps ...recvStep) (*Connection, *recorder) {
	t.Helper()
	tr := newScriptedTransport(steps...)
	rec := &recorder{}
	conn, err := New(testConfig(), loggingpkg.Discard(), Dependencies{
		Transport:              tr,
		DisableDefaultHandlers: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = conn.Register("recorder", rec.handle)
	require.NoError(t, err)
	tr.start()
	return conn, rec
}

func TestNewRequiresArguments(t *testing.T) {
	lb, err := transportpkg.NewLoopback(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lb.Close() })

	_, err = New(nil, loggingpkg.Discard(), Dependencies{Transport: lb})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	_, err = New(testConfig(), nil, Dependencies{Transport: lb})
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)

	_, err = New(testConfig(), loggingpkg.Discard(), Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrTransportRequired)

	conf := testConfig()
	conf.ConsoleCapacity = -1
	_, err = New(conf, loggingpkg.Discard(), Dependencies{Transport: lb})
	var cfgErr errspkg.ConfigValidationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewAssignsDebuggingID(t *testing.T) {
	conn, _ := newTestConnection(t, func(conf *configpkg.Config, _ *Dependencies) {
		conf.DebuggingID = ""
	})
	assert.NotEmpty(t, conn.DebuggingID())

	conn.SetDebuggingID("renamed")
	assert.Equal(t, "renamed", conn.DebuggingID())
	assert.Equal(t, "renamed", conn.Stats().DebuggingID)
}

func TestCloseStopsPumpAndIsIdempotent(t *testing.T) {
	conn, _ := newTestConnection(t)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, conn.Closed())

	select {
	case <-conn.Done():
	case <-time.After(waitFor):
		t.Fatal("pump did not exit after Close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	assert.NoError(t, conn.Wait(ctx))
}

func TestPumpExitsWhenTransportCloses(t *testing.T) {
	lb, err := transportpkg.NewLoopback(nil)
	require.NoError(t, err)

	conn, err := New(testConfig(), loggingpkg.Discard(), Dependencies{Transport: lb})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, lb.Close())
	select {
	case <-conn.Done():
	case <-time.After(waitFor):
		t.Fatal("pump did not exit after the transport closed")
	}
	assert.False(t, conn.Closed())
}

func TestPumpRelaysReceiveErrorsAndKeepsReading(t *testing.T) {
	reset := errors.New("connection reset by peer")
	conn, rec := newScriptedConnection(t,
		recvStep{err: transportpkg.ErrWouldBlock},
		recvStep{err: reset},
		recvStep{frame: `{"method":"Page.loadEventFired","params":{}}`},
	)

	require.Eventually(t, func() bool { return rec.len() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, []string{"Page.loadEventFired"}, rec.methods())

	_, err := conn.Call(context.Background(), "Page.enable", nil)
	var transportErr *errspkg.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "recv", transportErr.Op)
	assert.Equal(t, "test", transportErr.Origin)
	assert.ErrorIs(t, err, reset)
}

func TestPumpDispatchesDocumentsBeforeDecodeError(t *testing.T) {
	conn, rec := newScriptedConnection(t,
		recvStep{frame: `{"method":"A.one"}{"method":`},
	)

	require.Eventually(t, func() bool { return conn.Relay().Pending() }, waitFor, time.Millisecond)
	assert.Equal(t, []string{"A.one"}, rec.methods())

	err := conn.Relay().Drain()
	var transportErr *errspkg.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "decode", transportErr.Op)
}

func TestPumpExitsOnClosedTransport(t *testing.T) {
	conn, _ := newScriptedConnection(t, recvStep{err: transportpkg.ErrClosed})

	select {
	case <-conn.Done():
	case <-time.After(waitFor):
		t.Fatal("pump did not exit on ErrClosed")
	}
	assert.False(t, conn.Relay().Pending())
}

func TestRegisterRejectsNilHandler(t *testing.T) {
	conn, _ := newTestConnection(t)
	_, err := conn.Register("nil", nil)
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)
}

func listingServer(t *testing.T, wsURL string) (string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"P1","type":"page","title":"t","url":"about:blank","webSocketDebuggerUrl":"` + wsURL + `"}]`))
	}))
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func stubDial(t *testing.T, fn func(ctx context.Context, url string) (transportpkg.Transport, error)) {
	t.Helper()
	orig := dialWebSocket
	dialWebSocket = fn
	t.Cleanup(func() { dialWebSocket = orig })
}

func TestConnectResolvesTargetFromListing(t *testing.T) {
	var dialed string
	stubDial(t, func(_ context.Context, url string) (transportpkg.Transport, error) {
		dialed = url
		return transportpkg.NewLoopback(nil)
	})

	conf := testConfig()
	conf.Host, conf.Port = listingServer(t, "ws://browser/devtools/page/P1")

	conn, err := Connect(context.Background(), conf, loggingpkg.Discard(), Dependencies{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, "ws://browser/devtools/page/P1", dialed)
}

func TestConnectUsesWebSocketURL(t *testing.T) {
	var dialed string
	stubDial(t, func(_ context.Context, url string) (transportpkg.Transport, error) {
		dialed = url
		return transportpkg.NewLoopback(nil)
	})

	conf := testConfig()
	conf.WebSocketURL = "ws://127.0.0.1:9222/devtools/page/X"
	conn, err := Connect(context.Background(), conf, loggingpkg.Discard(), Dependencies{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, conf.WebSocketURL, dialed)
}

func TestConnectErrors(t *testing.T) {
	_, err := Connect(context.Background(), nil, loggingpkg.Discard(), Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	stubDial(t, func(context.Context, string) (transportpkg.Transport, error) {
		return nil, errors.New("refused")
	})
	conf := testConfig()
	conf.WebSocketURL = "ws://127.0.0.1:1/devtools/page/X"
	_, err = Connect(context.Background(), conf, loggingpkg.Discard(), Dependencies{})
	var transportErr *errspkg.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "dial", transportErr.Op)
	assert.ErrorContains(t, err, "refused")

	conf = testConfig()
	conf.Host, conf.Port = listingServer(t, "ws://browser/devtools/page/P1")
	conf.Tab = 3
	_, err = Connect(context.Background(), conf, loggingpkg.Discard(), Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrTargetNotFound)
}
