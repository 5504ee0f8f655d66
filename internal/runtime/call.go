package runtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/cdpflow/internal/runtime/logging"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

const tracerName = "cdpflow"

// CallOption customises a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout   time.Duration
	sessionID string
}

// WithTimeout bounds how long the call waits for its response. Zero or a
// negative value uses the connection default.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithSessionID routes the command to an attached target session.
func WithSessionID(id string) CallOption {
	return func(o *callOptions) {
		o.sessionID = id
	}
}

func (c *Connection) callOptions(opts []CallOption) callOptions {
	o := callOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.timeout <= 0 {
		o.timeout = c.defaultTimeout
	}
	return o
}

// Call issues method with params and waits for its response.
//
// A failure captured on the pump since the previous call is returned first,
// before anything is sent. Otherwise the result object of the response is
// returned; an empty object when the peer sent none. A response carrying an
// error yields *errors.RemoteError, and no response within the timeout
// yields *errors.CallTimeoutError.
func (c *Connection) Call(ctx context.Context, method string, params map[string]any, opts ...CallOption) (map[string]any, error) {
	if method == "" {
		return nil, errspkg.ErrMethodRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	o := c.callOptions(opts)

	ctx, span := otel.Tracer(tracerName).Start(ctx, method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("cdp.debugging_id", c.DebuggingID()))

	callCtx := CallContext{
		Method:      method,
		DebuggingID: c.DebuggingID(),
		Context:     ctx,
		StartedAt:   time.Now(),
	}

	// Relayed failures have no call id.
	if err := c.relay.Drain(); err != nil {
		c.hooks.start(callCtx)
		c.finishCall(span, callCtx, OutcomeRelayed, err)
		return nil, err
	}

	t := c.currentTransport()
	if t == nil {
		return nil, errspkg.ErrConnectionClosed
	}

	id := c.nextID.Add(1)
	req := protocol.NewRequest(id, method, params)
	req.SessionID = o.sessionID
	frame, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}

	callCtx.ID = id
	span.SetAttributes(attribute.Int64("cdp.call_id", id))
	c.hooks.start(callCtx)

	call := newPendingCall(id, method)
	call.handlerID.Store(uint64(c.handlers.registerBare("result:"+strconv.FormatInt(id, 10), c.resultHandler(call))))
	c.pending.add(call)

	c.debug.Debug("Sending message", loggingpkg.LogFields{"frame": string(frame)})

	var result map[string]any
	if err := t.Send(ctx, frame); err != nil {
		c.forget(call)
		err = &errspkg.TransportError{Op: "send", Origin: c.DebuggingID(), Err: err}
		c.finishCall(span, callCtx, OutcomeTransport, err)
		return nil, err
	}

	msg, err := call.wait(ctx, o.timeout)
	c.forget(call)

	switch {
	case err != nil:
	case msg.Error != nil:
		err = msg.Error.AsError()
	default:
		result = msg.Result
		if result == nil {
			result = map[string]any{}
		}
	}

	c.finishCall(span, callCtx, classifyOutcome(err), err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resultHandler builds the one-shot handler of call. Before matching ids it
// drains the relay, so a failure captured while the call is waiting ends
// the call instead of leaving it to time out.
func (c *Connection) resultHandler(call *PendingCall) EventHandler {
	return func(msg protocol.Message) error {
		if err := c.relay.Drain(); err != nil {
			call.resolve(protocol.Message{}, err)
			c.handlers.Deregister(HandlerID(call.handlerID.Load()))
			return nil
		}
		if msg.HasID(call.ID) {
			call.resolve(msg, nil)
			c.handlers.Deregister(HandlerID(call.handlerID.Load()))
		}
		return nil
	}
}

func (c *Connection) forget(call *PendingCall) {
	c.handlers.Deregister(HandlerID(call.handlerID.Load()))
	c.pending.remove(call.ID)
}

func (c *Connection) finishCall(span trace.Span, callCtx CallContext, outcome string, err error) {
	callCtx.Duration = time.Since(callCtx.StartedAt)
	c.metrics.recordCall(callCtx.Method, outcome, callCtx.Duration)
	span.SetAttributes(attribute.String("cdp.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.hooks.finish(callCtx, err)
}

func classifyOutcome(err error) string {
	var remote *errspkg.RemoteError
	var transportErr *errspkg.TransportError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &remote):
		return OutcomeRemote
	case errors.Is(err, errspkg.ErrCallTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.As(err, &transportErr):
		return OutcomeTransport
	default:
		return OutcomeRelayed
	}
}

// Send issues method without waiting for a response and returns the id
// used. It does not drain the failure relay, so it is safe to use from
// event handlers.
func (c *Connection) Send(ctx context.Context, method string, params map[string]any) (int64, error) {
	if method == "" {
		return 0, errspkg.ErrMethodRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t := c.currentTransport()
	if t == nil {
		return 0, errspkg.ErrConnectionClosed
	}

	id := c.nextID.Add(1)
	frame, err := protocol.NewRequest(id, method, params).Encode()
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", method, err)
	}
	c.debug.Debug("Sending message", loggingpkg.LogFields{"frame": string(frame)})
	if err := t.Send(ctx, frame); err != nil {
		return 0, &errspkg.TransportError{Op: "send", Origin: c.DebuggingID(), Err: err}
	}
	return id, nil
}

// Domain groups the methods of one protocol domain, so
// conn.Domain("Page").Call(ctx, "navigate", params) issues "Page.navigate".
type Domain struct {
	conn *Connection
	name string
}

// Domain returns the accessor for name. Names are not checked locally; an
// unknown domain or method is reported by the peer as a RemoteError.
func (c *Connection) Domain(name string) Domain {
	return Domain{conn: c, name: name}
}

// Name returns the domain name.
func (d Domain) Name() string {
	return d.name
}

// Call issues "<domain>.<method>".
func (d Domain) Call(ctx context.Context, method string, params map[string]any, opts ...CallOption) (map[string]any, error) {
	if method == "" {
		return nil, errspkg.ErrMethodRequired
	}
	return d.conn.Call(ctx, protocol.JoinMethod(d.name, method), params, opts...)
}

// Send issues "<domain>.<method>" without waiting.
func (d Domain) Send(ctx context.Context, method string, params map[string]any) (int64, error) {
	if method == "" {
		return 0, errspkg.ErrMethodRequired
	}
	return d.conn.Send(ctx, protocol.JoinMethod(d.name, method), params)
}
