package sink

// Capabilities describes what a sink guarantees for forwarded events.
type Capabilities struct {
	// Name is the registered sink name.
	Name string

	// SupportsOrdering indicates events reach the broker in the order they
	// were forwarded.
	SupportsOrdering bool

	// SupportsTracing indicates the sink propagates trace headers natively.
	SupportsTracing bool

	// Durable indicates published events survive a restart of the process.
	Durable bool

	// Remote indicates the sink talks to an external service.
	Remote bool

	// MaxMessageSize is the maximum payload in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// Fits reports whether a payload of size bytes can be published.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize == 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the built-in sinks.
var (
	// ChannelCapabilities for the in-memory Go channel sink.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
	}

	// KafkaCapabilities for Apache Kafka.
	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsTracing:  true,
		Durable:          true,
		Remote:           true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsTracing:  true,
		Durable:          true,
		Remote:           true,
	}

	// NATSCapabilities for NATS Core.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		Remote:          true,
		MaxMessageSize:  1048576,
	}

	// JetStreamCapabilities for NATS JetStream.
	JetStreamCapabilities = Capabilities{
		Name:             "jetstream",
		SupportsOrdering: true,
		SupportsTracing:  true,
		Durable:          true,
		Remote:           true,
		MaxMessageSize:   1048576,
	}

	// AWSCapabilities for AWS SNS.
	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsTracing: true,
		Durable:         true,
		Remote:          true,
		MaxMessageSize:  262144, // 256KB
	}

	// SQSCapabilities for publishing straight to AWS SQS queues.
	SQSCapabilities = Capabilities{
		Name:            "aws-sqs",
		SupportsTracing: true,
		Durable:         true,
		Remote:          true,
		MaxMessageSize:  262144,
	}

	// HTTPCapabilities for HTTP POST delivery.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
		Remote:          true,
	}

	// IOCapabilities for the append-only file sink.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
		Durable:          true,
	}

	// PostgresCapabilities for the PostgreSQL event store.
	PostgresCapabilities = Capabilities{
		Name:             "postgres",
		SupportsOrdering: true,
		Durable:          true,
		Remote:           true,
	}

	// SQLiteCapabilities for the SQLite event store.
	SQLiteCapabilities = Capabilities{
		Name:             "sqlite",
		SupportsOrdering: true,
		Durable:          true,
	}
)
