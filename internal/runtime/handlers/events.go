// Package handlers builds typed event handlers on top of the raw message
// handler signature used by a connection.
package handlers

import (
	"fmt"

	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

// Event is an inbound event with its params decoded into T.
type Event[T any] struct {
	Method    string
	SessionID string
	Params    T
	Message   protocol.Message
}

// EventFunc handles a typed event.
type EventFunc[T any] func(evt Event[T]) error

// Typed returns a message handler that ignores everything but method and
// decodes the params of matching events into T.
func Typed[T any](method string, fn EventFunc[T]) (func(protocol.Message) error, error) {
	if fn == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	if method == "" {
		return nil, errspkg.ErrMethodRequired
	}

	return func(msg protocol.Message) error {
		if msg.Method != method || msg.IsResponse() {
			return nil
		}
		var params T
		if msg.Params != nil {
			if err := DecodeParams(msg.Params, &params); err != nil {
				return fmt.Errorf("decode %s params: %w", method, err)
			}
		}
		return fn(Event[T]{
			Method:    msg.Method,
			SessionID: msg.SessionID,
			Params:    params,
			Message:   msg,
		})
	}, nil
}

// ForDomain returns a handler that only sees events of one domain, such as
// "Network" or "Page".
func ForDomain(domain string, fn func(protocol.Message) error) (func(protocol.Message) error, error) {
	if fn == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	return func(msg protocol.Message) error {
		if !msg.IsEvent() || msg.Domain() != domain {
			return nil
		}
		return fn(msg)
	}, nil
}

// DecodeParams converts a decoded JSON object into out.
func DecodeParams(params map[string]any, out any) error {
	data, err := jsoncodec.Marshal(params)
	if err != nil {
		return err
	}
	return jsoncodec.Unmarshal(data, out)
}

// DecodeResult converts the result object of a call into T.
func DecodeResult[T any](result map[string]any) (T, error) {
	var out T
	if result == nil {
		return out, nil
	}
	err := DecodeParams(result, &out)
	return out, err
}
