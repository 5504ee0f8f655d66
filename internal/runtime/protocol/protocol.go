// Package protocol holds the wire shapes exchanged with a DevTools endpoint.
//
// Every inbound document is either an event ({"method", "params"}) or a
// command response ({"id", "result"} or {"id", "error"}). The client never
// interprets method names or parameters; they are forwarded opaquely.
package protocol

import (
	"strings"

	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
)

// Well-known event and command names used by the built-in handlers.
const (
	MethodConsoleAPICalled       = "Runtime.consoleAPICalled"
	MethodJavaScriptDialogOpen   = "Page.javascriptDialogOpening"
	MethodHandleJavaScriptDialog = "Page.handleJavaScriptDialog"
	MethodTargetCrashed          = "Inspector.targetCrashed"
	MethodLoadingFailed          = "Network.loadingFailed"
)

// Message is one decoded inbound document.
type Message struct {
	ID        *int64         `json:"id,omitempty"`
	Method    string         `json:"method,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
}

// ResponseError is the error payload of a failed command.
type ResponseError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// AsError converts the payload into the client's RemoteError.
func (e *ResponseError) AsError() error {
	if e == nil {
		return nil
	}
	return &errspkg.RemoteError{Code: e.Code, Message: e.Message, Data: e.Data}
}

// IsEvent reports whether the message is an unsolicited notification.
func (m Message) IsEvent() bool {
	return m.ID == nil && m.Method != ""
}

// IsResponse reports whether the message answers a command.
func (m Message) IsResponse() bool {
	return m.ID != nil
}

// HasID reports whether the message is the response to call id.
func (m Message) HasID(id int64) bool {
	return m.ID != nil && *m.ID == id
}

// Domain returns the part of the method name before the first dot.
func (m Message) Domain() string {
	domain, _, _ := strings.Cut(m.Method, ".")
	return domain
}

// StringParam returns params[key] when it is a string.
func (m Message) StringParam(key string) string {
	s, _ := m.Params[key].(string)
	return s
}

// Request is an outbound command.
type Request struct {
	ID        int64          `json:"id"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params"`
	SessionID string         `json:"sessionId,omitempty"`
}

// NewRequest builds a command. Nil params are sent as an empty object.
func NewRequest(id int64, method string, params map[string]any) Request {
	if params == nil {
		params = map[string]any{}
	}
	return Request{ID: id, Method: method, Params: params}
}

// Encode serialises the request.
func (r Request) Encode() ([]byte, error) {
	return jsoncodec.Marshal(r)
}

// JoinMethod builds a "Domain.method" name.
func JoinMethod(domain, method string) string {
	if domain == "" {
		return method
	}
	return domain + "." + method
}

// SplitFrame decodes every document in a frame, preserving order.
func SplitFrame(frame []byte) ([]Message, error) {
	return jsoncodec.DecodeAll[Message](frame)
}

// Int64 returns an int64 pointer, handy for building responses in tests.
func Int64(v int64) *int64 {
	return &v
}
