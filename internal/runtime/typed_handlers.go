package runtime

import (
	"context"

	handlerpkg "github.com/drblury/cdpflow/internal/runtime/handlers"
)

// Event is an inbound event with decoded params.
type Event[T any] = handlerpkg.Event[T]

// OnEvent registers fn for method, decoding the event params into T. A
// decode failure is relayed like any other handler error.
func OnEvent[T any](c *Connection, method string, fn func(Event[T]) error) (HandlerID, error) {
	h, err := handlerpkg.Typed(method, handlerpkg.EventFunc[T](fn))
	if err != nil {
		return 0, err
	}
	return c.Register("on:"+method, h)
}

// OnDomain registers fn for every event of domain.
func OnDomain(c *Connection, domain string, fn EventHandler) (HandlerID, error) {
	h, err := handlerpkg.ForDomain(domain, fn)
	if err != nil {
		return 0, err
	}
	return c.Register("domain:"+domain, h)
}

// CallInto issues method and decodes the result object into T.
func CallInto[T any](c *Connection, ctx context.Context, method string, params map[string]any, opts ...CallOption) (T, error) {
	var zero T
	res, err := c.Call(ctx, method, params, opts...)
	if err != nil {
		return zero, err
	}
	return handlerpkg.DecodeResult[T](res)
}
