package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
)

// CallContext describes a remote call to hooks.
type CallContext struct {
	// ID is the call id sent on the wire.
	ID int64
	// Method is the full "Domain.method" name.
	Method string
	// DebuggingID labels the connection that issued the call.
	DebuggingID string
	// Context is the caller's context, carrying the call span.
	Context context.Context
	// StartedAt is when the call was issued.
	StartedAt time.Time
	// Duration is how long the call took (only set in OnCallDone and OnCallError).
	Duration time.Duration
}

// CallHooks defines callbacks for the call lifecycle.
// All hooks are optional - nil hooks are simply not called.
type CallHooks struct {
	// OnCallStart is called after the call id is allocated, before sending.
	// A call ended by a relayed failure starts with ID zero.
	OnCallStart func(ctx CallContext)

	// OnCallDone is called when a response without an error payload arrived.
	OnCallDone func(ctx CallContext)

	// OnCallError is called for every other outcome: remote errors, timeouts,
	// relayed failures, send errors and cancellation.
	OnCallError func(ctx CallContext, err error)
}

// Merge combines two CallHooks. The hooks from 'other' run after those of 'h'.
func (h CallHooks) Merge(other CallHooks) CallHooks {
	return CallHooks{
		OnCallStart: chainCallHooks(h.OnCallStart, other.OnCallStart),
		OnCallDone:  chainCallHooks(h.OnCallDone, other.OnCallDone),
		OnCallError: chainCallErrorHooks(h.OnCallError, other.OnCallError),
	}
}

func chainCallHooks(a, b func(CallContext)) func(CallContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx CallContext) {
		a(ctx)
		b(ctx)
	}
}

func chainCallErrorHooks(a, b func(CallContext, error)) func(CallContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx CallContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h CallHooks) start(ctx CallContext) {
	if h.OnCallStart != nil {
		h.OnCallStart(ctx)
	}
}

func (h CallHooks) finish(ctx CallContext, err error) {
	if err != nil {
		if h.OnCallError != nil {
			h.OnCallError(ctx, err)
		}
		return
	}
	if h.OnCallDone != nil {
		h.OnCallDone(ctx)
	}
}

// LoggingHooks returns hooks that log every call at debug level and failed
// calls at error level.
func LoggingHooks(logger loggingpkg.ServiceLogger) CallHooks {
	return CallHooks{
		OnCallStart: func(ctx CallContext) {
			logger.Debug("Call started", loggingpkg.LogFields{
				"id":           ctx.ID,
				"method":       ctx.Method,
				"debugging_id": ctx.DebuggingID,
			})
		},
		OnCallDone: func(ctx CallContext) {
			logger.Debug("Call completed", loggingpkg.LogFields{
				"id":           ctx.ID,
				"method":       ctx.Method,
				"debugging_id": ctx.DebuggingID,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
		OnCallError: func(ctx CallContext, err error) {
			logger.Error("Call failed", err, loggingpkg.LogFields{
				"id":           ctx.ID,
				"method":       ctx.Method,
				"debugging_id": ctx.DebuggingID,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
	}
}

// AlertingHooks returns hooks that trigger alerts on failed calls.
func AlertingHooks(alertFunc func(ctx CallContext, err error)) CallHooks {
	return CallHooks{
		OnCallError: alertFunc,
	}
}
