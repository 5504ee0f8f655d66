// Package sink defines the event sinks that inbound CDP events can be
// forwarded to. Each sink implementation (kafka, rabbitmq, aws, etc.) lives in
// its own sub-package and registers itself with the sink registry.
package sink

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Builder is the function signature for creating a sink publisher from config.
// Each sink package provides a Builder that is registered under its name.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error)

// Config provides the configuration values needed by sinks.
// Sinks read only the values they need without depending on the full
// config package.
type Config interface {
	// GetSinkSystem returns the sink name.
	GetSinkSystem() string

	// Kafka
	GetKafkaBrokers() []string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS and JetStream
	GetNATSURL() string

	// HTTP
	GetHTTPPublisherURL() string

	// IO
	GetIOFile() string

	// SQL event stores
	GetPostgresURL() string
	GetSQLiteFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by publishers that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
