package sinks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/cdpflow/sink"
)

func TestBuiltinSinksAreRegistered(t *testing.T) {
	for _, name := range []string{"aws", "aws-sqs", "channel", "http", "io", "jetstream", "kafka", "nats", "postgres", "postgresql", "rabbitmq", "sqlite"} {
		assert.True(t, sink.DefaultRegistry.Has(name), name)
	}
}
