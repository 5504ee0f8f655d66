package runtime

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

// DefaultSlowHandlerThreshold is the duration after which SlowHandlerMiddleware
// reports a handler. Slow handlers delay every later message.
const DefaultSlowHandlerThreshold = 250 * time.Millisecond

// HandlerMiddleware wraps an event handler. name is the registration name.
type HandlerMiddleware func(name string, next EventHandler) EventHandler

// MiddlewareBuilder constructs a handler middleware for a connection.
type MiddlewareBuilder func(*Connection) (HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware is installed on a connection.
type MiddlewareRegistration struct {
	Name       string
	Middleware HandlerMiddleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the chain installed by New unless disabled.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		TracerMiddleware(),
		LogEventsMiddleware(nil),
		SlowHandlerMiddleware(0),
	}
}

// TracerMiddleware runs each handler invocation inside an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Middleware: func(name string, next EventHandler) EventHandler {
			return func(msg protocol.Message) error {
				_, span := otel.Tracer(tracerName).Start(context.Background(), "HandleEvent")
				defer span.End()

				span.SetAttributes(
					attribute.String("cdp.handler", name),
					attribute.String("cdp.method", msg.Method),
				)
				err := next(msg)
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				}
				return err
			}
		},
	}
}

// LogEventsMiddleware traces every handler invocation. A nil logger uses the
// connection's logger.
func LogEventsMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_events",
		Builder: func(c *Connection) (HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = c.Logger
			}
			if l == nil {
				return nil, errors.New("log events middleware requires a logger")
			}
			return func(name string, next EventHandler) EventHandler {
				return func(msg protocol.Message) error {
					fields := loggingpkg.LogFields{"handler": name, "method": msg.Method}
					if msg.ID != nil {
						fields["id"] = *msg.ID
					}
					l.Trace("Handling message", fields)
					return next(msg)
				}
			}, nil
		},
	}
}

// SlowHandlerMiddleware logs handlers that run longer than threshold.
// Zero uses DefaultSlowHandlerThreshold.
func SlowHandlerMiddleware(threshold time.Duration) MiddlewareRegistration {
	if threshold <= 0 {
		threshold = DefaultSlowHandlerThreshold
	}
	return MiddlewareRegistration{
		Name: "slow_handler",
		Builder: func(c *Connection) (HandlerMiddleware, error) {
			return func(name string, next EventHandler) EventHandler {
				return func(msg protocol.Message) error {
					started := time.Now()
					err := next(msg)
					if elapsed := time.Since(started); elapsed > threshold {
						c.Logger.Info("Slow event handler", loggingpkg.LogFields{
							"handler":      name,
							"method":       msg.Method,
							"duration_ms":  elapsed.Milliseconds(),
							"debugging_id": c.DebuggingID(),
						})
					}
					return err
				}
			}, nil
		},
	}
}

// RegisterMiddleware wraps handlers registered after this call.
func (c *Connection) RegisterMiddleware(cfg MiddlewareRegistration) error {
	var mw HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(c)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	c.handlers.Use(mw)
	return nil
}
