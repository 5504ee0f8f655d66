package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/cdpflow/internal/runtime/config"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

func TestMetricsRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	// A second set of collectors with the same names is tolerated.
	require.NoError(t, NewMetrics(reg).Register())

	var nilMetrics *Metrics
	assert.NoError(t, nilMetrics.Register())
	nilMetrics.recordCall("Page.enable", OutcomeOK, time.Millisecond)
	nilMetrics.recordDispatch()
	nilMetrics.recordHandlerFault("x")
	nilMetrics.recordRelayOverwrite()
	nilMetrics.recordConsoleEviction()
	nilMetrics.recordForward(ForwardPublished)
}

func TestMetricsAdoptExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	require.NoError(t, first.Register())

	second := NewMetrics(reg)
	require.NoError(t, second.Register())
	second.recordCall("Page.enable", OutcomeOK, time.Millisecond)
	second.recordDispatch()

	assert.Equal(t, 1.0, testutil.ToFloat64(first.callsTotal.WithLabelValues("Page.enable", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.messagesDispatched))

	count, err := testutil.GatherAndCount(reg, "cdpflow_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConnectionsShareRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	withMetrics := func(conf *configpkg.Config, deps *Dependencies) {
		conf.MetricsEnabled = true
		deps.Registerer = reg
	}
	first, _ := newTestConnection(t, withMetrics)
	second, peer := newTestConnection(t, withMetrics)

	serve(t, peer, func(protocol.Request) map[string]any { return nil })
	_, err := second.Call(context.Background(), "Page.enable", nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(first.Metrics().callsTotal.WithLabelValues("Page.enable", OutcomeOK)))
	count, err := testutil.GatherAndCount(reg, "cdpflow_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConnectionRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	conn, peer := newTestConnection(t, func(conf *configpkg.Config, deps *Dependencies) {
		conf.MetricsEnabled = true
		conf.ConsoleCapacity = 1
		deps.Registerer = reg
	})
	m := conn.Metrics()
	require.NotNil(t, m)

	_, err := conn.Register("faulty", func(msg protocol.Message) error {
		if msg.Method == "Test.fail" {
			return errors.New("fail")
		}
		return nil
	})
	require.NoError(t, err)

	sendFrame(t, peer, `{"method":"Runtime.consoleAPICalled","params":{"type":"log","args":[]}}`)
	sendFrame(t, peer, `{"method":"Runtime.consoleAPICalled","params":{"type":"log","args":[]}}`)
	sendFrame(t, peer, `{"method":"Test.fail"}`)
	sendFrame(t, peer, `{"method":"Test.fail"}`)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.relayOverwrites) == 1
	}, waitFor, time.Millisecond)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.messagesDispatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.consoleEvictions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.handlerFaults.WithLabelValues("faulty")))

	_, err = conn.Call(context.Background(), "Page.enable", nil)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsTotal.WithLabelValues("Page.enable", OutcomeRelayed)))

	serve(t, peer, func(protocol.Request) map[string]any { return nil })
	_, err = conn.Call(context.Background(), "Page.enable", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsTotal.WithLabelValues("Page.enable", OutcomeOK)))

	count, err := testutil.GatherAndCount(reg, "cdpflow_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetricsDisabledByDefault(t *testing.T) {
	conn, _ := newTestConnection(t)
	assert.Nil(t, conn.Metrics())
}
