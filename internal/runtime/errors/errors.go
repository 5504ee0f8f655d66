package errors

import (
	sterrors "errors"
	"fmt"
	"time"
)

var (
	ErrConfigRequired        = sterrors.New("cdpflow: configuration is required")
	ErrLoggerRequired        = sterrors.New("cdpflow: logger is required")
	ErrTransportRequired     = sterrors.New("cdpflow: transport is required")
	ErrMethodRequired        = sterrors.New("cdpflow: method name is required")
	ErrHandlerRequired       = sterrors.New("cdpflow: event handler is required")
	ErrConnectionClosed      = sterrors.New("cdpflow: connection is closed")
	ErrCallTimeout           = sterrors.New("cdpflow: call timed out")
	ErrTargetNotFound        = sterrors.New("cdpflow: debugging target not found")
	ErrTargetCrashed         = sterrors.New("cdpflow: inspected target crashed")
	ErrProxyConnectionFailed = sterrors.New("cdpflow: browser failed to connect to the proxy")
	ErrPublisherRequired     = sterrors.New("cdpflow: publisher is required")
	ErrTopicRequired         = sterrors.New("cdpflow: topic is required")
)

// CallTimeoutError is returned when no response matching the call id arrived
// within the call's timeout.
type CallTimeoutError struct {
	ID      int64
	Method  string
	Timeout time.Duration
}

func (e *CallTimeoutError) Error() string {
	return fmt.Sprintf("cdpflow: call %d (%s) timed out after %v", e.ID, e.Method, e.Timeout)
}

func (e *CallTimeoutError) Is(target error) bool {
	return target == ErrCallTimeout
}

// RemoteError carries the error payload of a command response.
type RemoteError struct {
	Code    int64
	Message string
	Data    any
}

func (e *RemoteError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("cdpflow: remote error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdpflow: remote error %d: %s", e.Code, e.Message)
}

// TransportError wraps an unexpected failure reported by the underlying socket.
// Origin is the debugging id of the connection that observed it.
type TransportError struct {
	Op     string
	Origin string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("cdpflow: transport %s failed (did: %s): %v", e.Op, e.Origin, e.Err)
	}
	return fmt.Sprintf("cdpflow: transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HandlerFaultError records a failure raised by an event handler on the
// reader goroutine. It is relayed to the next caller.
type HandlerFaultError struct {
	Handler string
	Origin  string
	Err     error
}

func (e *HandlerFaultError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("cdpflow: event handler %s failed (did: %s): %v", e.Handler, e.Origin, e.Err)
	}
	return fmt.Sprintf("cdpflow: event handler %s failed: %v", e.Handler, e.Err)
}

func (e *HandlerFaultError) Unwrap() error {
	return e.Err
}

// ConfigValidationError wraps the joined validation errors of a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "cdpflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
