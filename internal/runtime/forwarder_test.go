package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cepkg "github.com/drblury/cdpflow/internal/runtime/cloudevents"
	configpkg "github.com/drblury/cdpflow/internal/runtime/config"
	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/cdpflow/internal/runtime/metadata"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
	"github.com/drblury/cdpflow/sink/sinktest"
)

func decodeForwarded(t *testing.T, msg *message.Message) cepkg.Event {
	t.Helper()
	var evt cepkg.Event
	require.NoError(t, jsoncodec.Unmarshal(msg.Payload, &evt))
	return evt
}

func TestNewForwarderValidatesArguments(t *testing.T) {
	_, err := NewForwarder(nil, ForwarderConfig{Topic: "t"}, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)

	_, err = NewForwarder(&sinktest.Publisher{}, ForwarderConfig{}, nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrTopicRequired)
}

func TestForwarderPublishesEventsAsCloudEvents(t *testing.T) {
	pub := &sinktest.Publisher{}
	fwd, err := NewForwarder(pub, ForwarderConfig{
		Topic:       "cdp.events",
		Source:      "cdpflow://test",
		DebuggingID: func() string { return "dbg" },
	}, loggingpkg.Discard(), nil)
	require.NoError(t, err)

	require.NoError(t, fwd.Handle(protocol.Message{ID: protocol.Int64(1), Result: map[string]any{}}))
	require.NoError(t, fwd.Handle(protocol.Message{
		Method:    "Page.loadEventFired",
		SessionID: "S1",
		Params:    map[string]any{"timestamp": 1.5},
	}))
	require.NoError(t, fwd.Close())
	require.NoError(t, fwd.Close())

	assert.True(t, pub.Closed())
	assert.False(t, fwd.Enqueue(protocol.Message{Method: "Page.late"}))

	published := pub.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "cdp.events", published[0].Topic)
	require.Len(t, published[0].Messages, 1)

	out := published[0].Messages[0]
	evt := decodeForwarded(t, out)
	assert.Equal(t, out.UUID, evt.ID)
	assert.Equal(t, "cdp.Page.loadEventFired", evt.Type)
	assert.Equal(t, "cdpflow://test", evt.Source)
	assert.Equal(t, "Page", evt.Subject)
	assert.Equal(t, "Page.loadEventFired", cepkg.GetMethod(evt))
	assert.Equal(t, "dbg", cepkg.GetDebuggingID(evt))
	assert.Equal(t, map[string]any{"timestamp": 1.5}, evt.Data)

	assert.Equal(t, "Page.loadEventFired", out.Metadata.Get(metadatapkg.KeyMethod))
	assert.Equal(t, "S1", out.Metadata.Get(metadatapkg.KeySessionID))
	assert.Equal(t, "dbg", out.Metadata.Get(metadatapkg.KeyDebuggingID))
	assert.Equal(t, "cdp.Page.loadEventFired", out.Metadata.Get(metadatapkg.KeyEventType))
	assert.Equal(t, "application/cloudevents+json", out.Metadata.Get(metadatapkg.KeyContentType))
}

// gatedPublisher blocks every Publish until released.
type gatedPublisher struct {
	sinktest.Publisher
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPublisher) Publish(topic string, messages ...*message.Message) error {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.Publisher.Publish(topic, messages...)
}

func TestForwarderDropsWhenQueueIsFull(t *testing.T) {
	pub := &gatedPublisher{started: make(chan struct{}), release: make(chan struct{})}
	metrics := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, metrics.Register())

	fwd, err := NewForwarder(pub, ForwarderConfig{Topic: "t", Buffer: 1}, nil, metrics)
	require.NoError(t, err)

	assert.True(t, fwd.Enqueue(protocol.Message{Method: "A.one"}))
	select {
	case <-pub.started:
	case <-time.After(waitFor):
		t.Fatal("forwarder never published")
	}
	assert.True(t, fwd.Enqueue(protocol.Message{Method: "A.two"}))
	assert.False(t, fwd.Enqueue(protocol.Message{Method: "A.three"}))

	close(pub.release)
	require.NoError(t, fwd.Close())

	assert.Len(t, pub.Messages(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.forwardedEvents.WithLabelValues(ForwardDropped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.forwardedEvents.WithLabelValues(ForwardPublished)))
}

func TestForwarderCountsPublishFailures(t *testing.T) {
	pub := &sinktest.Publisher{Err: assert.AnError}
	metrics := NewMetrics(prometheus.NewRegistry())
	fwd, err := NewForwarder(pub, ForwarderConfig{Topic: "t"}, nil, metrics)
	require.NoError(t, err)

	fwd.Enqueue(protocol.Message{Method: "A.one"})
	require.NoError(t, fwd.Close())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.forwardedEvents.WithLabelValues(ForwardFailed)))
}

func TestConnectionForwardsInboundEvents(t *testing.T) {
	pub := &sinktest.Publisher{}
	conn, peer := newTestConnection(t, func(_ *configpkg.Config, deps *Dependencies) {
		deps.Publisher = pub
	})
	assert.Contains(t, conn.Handlers().Names(), "forwarder")

	serve(t, peer, func(protocol.Request) map[string]any { return map[string]any{} })
	sendFrame(t, peer, `{"method":"Network.requestWillBeSent","params":{"requestId":"R1"}}`)
	_, err := conn.Call(context.Background(), "Network.enable", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.Messages()) == 1 }, waitFor, time.Millisecond)
	require.NoError(t, conn.Close())
	assert.True(t, pub.Closed())

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	evt := decodeForwarded(t, msgs[0])
	assert.Equal(t, "cdp.Network.requestWillBeSent", evt.Type)
	assert.Equal(t, "test", cepkg.GetDebuggingID(evt))
	assert.Equal(t, configpkg.DefaultForwardTopic, pub.Published()[0].Topic)
}

func TestBuildSinkPublisher(t *testing.T) {
	_, err := BuildSinkPublisher(context.Background(), nil, loggingpkg.Discard())
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	conf := &configpkg.Config{ForwardSink: "channel"}
	pub, err := BuildSinkPublisher(context.Background(), conf, loggingpkg.Discard())
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	_, err = BuildSinkPublisher(context.Background(), &configpkg.Config{ForwardSink: "carrier-pigeon"}, loggingpkg.Discard())
	assert.ErrorContains(t, err, "unknown sink")
}
