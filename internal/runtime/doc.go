/*
Package runtime implements the cdpflow client: a connection to one Chrome
DevTools target that issues remote calls and dispatches inbound events.

# Architecture Overview

A Connection owns a transport and runs a single message pump goroutine.
Every inbound frame is split into its JSON documents and each document is
handed, in registration order, to every registered event handler. Calls are
answered by the same mechanism: each call registers a one-shot result
handler that resolves the call when the response with its id arrives.

Handlers never return errors to the pump. A failing or panicking handler is
recorded in the failure relay, a single slot that the next Call drains and
returns to its caller. A later failure overwrites an undrained one.

# Package Structure

## Connection (connection.go, pump.go)

Connect resolves a target and dials it; New wraps an existing transport.
The pump polls the transport with a short read timeout so Close is noticed
promptly.

## Calls (call.go, pending.go, relay.go)

Call allocates a monotonically increasing id, sends the request and waits
for the response, the timeout, or a relayed failure. Domain offers
"Domain.method" accessors over Call and Send.

## Dispatch (dispatch.go, middleware.go)

HandlerRegistry is an ordered, copy-on-iterate list of handlers. Middleware
is applied when a handler is registered, so result handlers skip it.

## Built-in handlers (event_handlers.go, console.go)

Every connection installs detectors for proxy failures and target crashes,
a console buffer holding the newest 500 console messages and a JavaScript
dialog responder.

## Forwarding (forwarder.go)

Inbound events can be republished as CloudEvents on any watermill publisher
registered in the sink package (Kafka, RabbitMQ, NATS, JetStream, AWS, HTTP,
files or an in-process channel).

## Observability (metrics.go, hooks.go, webui.go)

Prometheus collectors, call lifecycle hooks and a JSON stats endpoint.

# Sub-packages

  - config/: connection configuration with TOML and environment loading
  - errors/: sentinel errors and error types
  - handlers/: typed event decoding
  - ids/: ULID generation for debugging and event ids
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: forwarded message metadata
  - protocol/: wire messages and frame splitting
  - transport/: websocket and loopback transports, target discovery

# Usage Example

	conn, err := cdpflow.Connect(ctx, &cdpflow.Config{Port: 9222}, logger, cdpflow.Dependencies{})
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.Call(ctx, "Page.navigate", map[string]any{"url": "https://example.com"})
*/
package runtime
