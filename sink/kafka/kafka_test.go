package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/cdpflow/sink"
	"github.com/drblury/cdpflow/sink/sinktest"
)

func TestRegister(t *testing.T) {
	orig := sink.DefaultRegistry
	t.Cleanup(func() { sink.DefaultRegistry = orig })
	sink.DefaultRegistry = sink.NewRegistry()

	Register()

	caps := sink.GetCapabilities(SinkName)
	assert.Equal(t, "kafka", caps.Name)
	assert.True(t, caps.Durable)
	assert.Equal(t, sink.KafkaCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("passes brokers to the publisher", func(t *testing.T) {
		orig := PublisherFactory
		defer func() { PublisherFactory = orig }()

		mockPub := &sinktest.Publisher{}
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.Brokers)
			assert.IsType(t, kafka.DefaultMarshaler{}, cfg.Marshaler)
			return mockPub, nil
		}

		pub, err := Build(context.Background(), &sinktest.Config{
			KafkaBrokers: []string{"localhost:9092", "localhost:9093"},
		}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Same(t, mockPub, pub)
	})

	t.Run("returns factory errors", func(t *testing.T) {
		orig := PublisherFactory
		defer func() { PublisherFactory = orig }()

		PublisherFactory = func(kafka.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), &sinktest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})
}
