// Package cdpflow is a client for the Chrome DevTools Protocol built on a
// single message pump. Connect lists the targets of a browser started with
// --remote-debugging-port, dials the selected page over a websocket and
// starts the pump; Call issues a command and waits for its response while
// any number of registered event handlers observe every inbound message.
//
// Handler errors never reach the pump. They are captured in a failure relay
// and returned by the next Call, so a crashed target or a failed proxy
// connection surfaces where the caller is already checking errors.
//
// # Built-in handlers
//
// Every connection installs handlers that:
//   - relay ErrProxyConnectionFailed when the browser cannot reach its proxy
//   - relay ErrTargetCrashed when the inspected target crashes
//   - buffer the newest 500 console messages for ReadConsoleMessage
//   - answer JavaScript dialogs according to the DialogHandler
//
// Set Dependencies.DisableDefaultHandlers to start with an empty registry.
//
// # Forwarding
//
// Setting Config.ForwardSink republishes every inbound event as a CloudEvent
// on one of the registered sinks:
//   - channel: in-memory Go channels for tests
//   - kafka: Kafka topics
//   - rabbitmq: durable AMQP queues
//   - nats: core NATS subjects
//   - jetstream: persistent NATS JetStream streams
//   - aws: AWS SNS topics with LocalStack support
//   - aws-sqs: AWS SQS queues
//   - http: HTTP POST per topic
//   - io: JSON lines appended to a file
//   - postgres: rows in a PostgreSQL events table
//   - sqlite: rows in a local SQLite events table
//
// # Middleware and hooks
//
// Handlers registered through Connection.Register pass through the
// middleware chain (tracing, trace logging and slow handler reports by
// default). CallHooks observe each call from start to completion, and
// Prometheus collectors are registered when Config.MetricsEnabled is set.
package cdpflow
