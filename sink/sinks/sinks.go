// Package sinks imports all built-in sinks for auto-registration.
// Import this package to have every sink registered with the default registry.
package sinks

import (
	// Import all sinks for side-effect registration
	_ "github.com/drblury/cdpflow/sink/aws"
	_ "github.com/drblury/cdpflow/sink/channel"
	_ "github.com/drblury/cdpflow/sink/http"
	_ "github.com/drblury/cdpflow/sink/io"
	_ "github.com/drblury/cdpflow/sink/jetstream"
	_ "github.com/drblury/cdpflow/sink/kafka"
	_ "github.com/drblury/cdpflow/sink/nats"
	_ "github.com/drblury/cdpflow/sink/postgres"
	_ "github.com/drblury/cdpflow/sink/rabbitmq"
	_ "github.com/drblury/cdpflow/sink/sqlite"
)
