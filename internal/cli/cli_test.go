package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/cdpflow"
)

// syncBuffer is a bytes.Buffer safe for the pump and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCallAgainstDemoBrowser(t *testing.T) {
	out, err := run(t, "--loopback", "call", "Page.navigate", `{"url":"about:blank"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"frameId": "DEMOFRAME"`)

	out, err = run(t, "--loopback", "call", "Browser.getVersion")
	require.NoError(t, err)
	assert.Contains(t, out, "cdpflow-demo/1.0")
}

func TestCallReportsRemoteErrors(t *testing.T) {
	_, err := run(t, "--loopback", "call", "Nope.missing")
	var remote *cdpflow.RemoteError
	require.True(t, errors.As(err, &remote), "expected remote error, got %v", err)
	assert.Equal(t, int64(-32601), remote.Code)

	_, err = run(t, "--loopback", "call", "Page.navigate", "not-json")
	assert.ErrorContains(t, err, "params must be a JSON object")

	_, err = run(t, "--loopback", "call")
	assert.Error(t, err)
}

func TestTailPrintsEvents(t *testing.T) {
	out, err := run(t, "--loopback", "tail", "--enable", "Page,Network", "--duration", "200ms")
	require.NoError(t, err)
	assert.Contains(t, out, `"method":"Page.loadEventFired"`)
	assert.Contains(t, out, `"method":"Network.requestWillBeSent"`)
	assert.NotContains(t, out, `"id"`)
}

func TestTailConsole(t *testing.T) {
	out, err := run(t, "--loopback", "tail", "--console", "--enable", "Runtime", "--duration", "200ms")
	require.NoError(t, err)
	assert.Contains(t, out, "hello from the demo page")
	assert.NotContains(t, out, "Runtime.consoleAPICalled")
}

func TestTailForwardsToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	cfgPath := filepath.Join(t.TempDir(), "cdpflow.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("forward_sink = \"io\"\nio_file = \""+filepath.ToSlash(path)+"\"\n"), 0o600))

	_, err := run(t, "--loopback", "--config", cfgPath, "tail", "--enable", "Page", "--duration", "200ms")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cdp.Page.loadEventFired")
}

func TestConfigErrors(t *testing.T) {
	_, err := run(t, "--loopback", "--port", "70000", "call", "Page.enable")
	assert.ErrorContains(t, err, "devtools: invalid port 70000")

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "call", "Page.enable")
	assert.ErrorContains(t, err, "load config")

	cfgPath := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("colour = \"blue\"\n"), 0o600))
	_, err = run(t, "--config", cfgPath, "call", "Page.enable")
	assert.ErrorContains(t, err, "unknown config keys")
}

func TestTargetsListsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
 {"id":"W1","type":"service_worker","title":"sw","url":"https://a/sw.js"},
 {"id":"P1","type":"page","title":"first","url":"https://a/","webSocketDebuggerUrl":"ws://h/devtools/page/P1"}
]`))
	}))
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	out, err := run(t, "--host", host, "--port", port, "targets")
	require.NoError(t, err)
	assert.Contains(t, out, "P1")
	assert.NotContains(t, out, "W1")

	out, err = run(t, "--host", host, "--port", port, "targets", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "W1")
}

func TestSinksListsRegisteredSinks(t *testing.T) {
	out, err := run(t, "sinks")
	require.NoError(t, err)
	for _, name := range []string{"aws", "aws-sqs", "channel", "http", "io", "jetstream", "kafka", "nats", "postgres", "postgresql", "rabbitmq", "sqlite"} {
		assert.Contains(t, out, name)
	}
}
