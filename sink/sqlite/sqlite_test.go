package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/cdpflow/sink"
	"github.com/drblury/cdpflow/sink/sinktest"
)

func openTestStore(t *testing.T) *Publisher {
	t.Helper()
	pub, err := New(Config{FilePath: filepath.Join(t.TempDir(), "events.db")}, nil)
	if err != nil {
		// The driver needs cgo.
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })
	return pub
}

func TestRegister(t *testing.T) {
	orig := sink.DefaultRegistry
	t.Cleanup(func() { sink.DefaultRegistry = orig })
	sink.DefaultRegistry = sink.NewRegistry()
	Register()

	caps := sink.GetCapabilities(SinkName)
	assert.Equal(t, "sqlite", caps.Name)
	assert.True(t, caps.Durable)
	assert.False(t, caps.Remote)
	assert.Equal(t, sink.SQLiteCapabilities, Capabilities())
}

func TestBuildDefaultsFilePath(t *testing.T) {
	orig := PublisherFactory
	t.Cleanup(func() { PublisherFactory = orig })

	var got Config
	PublisherFactory = func(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
		got = cfg
		return &sinktest.Publisher{}, nil
	}

	_, err := Build(context.Background(), &sinktest.Config{SQLiteFile: "/tmp/x.db"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", got.FilePath)

	assert.Equal(t, DefaultFilePath, Config{}.withDefaults().FilePath)
}

func TestPublishStoresEvents(t *testing.T) {
	pub := openTestStore(t)

	first := message.NewMessage("1", []byte(`{"type":"cdp.Page.loadEventFired"}`))
	first.Metadata.Set("cdp_method", "Page.loadEventFired")
	second := message.NewMessage("2", []byte(`{"type":"cdp.Network.requestWillBeSent"}`))
	second.Metadata.Set("cdp_method", "Network.requestWillBeSent")

	require.NoError(t, pub.Publish("cdp.events", first, second))
	// Redelivery of the same uuid is ignored.
	require.NoError(t, pub.Publish("cdp.events", first))
	require.NoError(t, pub.Publish("other", message.NewMessage("3", nil)))

	events, err := pub.Events(context.Background(), "cdp.events", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].UUID)
	assert.Equal(t, "Page.loadEventFired", events[0].Method)
	assert.Equal(t, "Page.loadEventFired", events[0].Metadata["cdp_method"])
	assert.JSONEq(t, `{"type":"cdp.Page.loadEventFired"}`, string(events[0].Payload))
	assert.Equal(t, "Network.requestWillBeSent", events[1].Method)

	other, err := pub.Events(context.Background(), "other", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Empty(t, other[0].Payload)
}

func TestPublishAfterClose(t *testing.T) {
	pub := openTestStore(t)
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.Publish("cdp.events", message.NewMessage("1", []byte("{}"))), ErrClosed)
}
