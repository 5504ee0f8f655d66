package cloudevents

import (
	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

// cdpflow extension keys. CloudEvents extension names are lower-case
// alphanumerics only.
const (
	// ExtMethod is the DevTools method that produced the event.
	ExtMethod = "cdpmethod"

	// ExtSessionID is the flattened target session the event belongs to.
	ExtSessionID = "cdpsessionid"

	// ExtDebuggingID is the debugging id of the connection that received it.
	ExtDebuggingID = "cdpdebuggingid"

	// ExtTraceID is the distributed trace id active when the event was forwarded.
	ExtTraceID = "traceid"
)

// FromMessage wraps an inbound DevTools event. The params become the event
// data; the method is carried both in the type and as an extension.
func FromMessage(msg protocol.Message, source, debuggingID string) Event {
	var data any
	if msg.Params != nil {
		data = msg.Params
	}
	evt := New(TypePrefix+msg.Method, source, data).
		WithSubject(msg.Domain()).
		WithExtension(ExtMethod, msg.Method)
	if msg.SessionID != "" {
		evt = evt.WithExtension(ExtSessionID, msg.SessionID)
	}
	if debuggingID != "" {
		evt = evt.WithExtension(ExtDebuggingID, debuggingID)
	}
	return evt
}

// GetMethod returns the DevTools method of a forwarded event.
func GetMethod(evt Event) string {
	return evt.GetExtensionString(ExtMethod)
}

// GetDebuggingID returns the debugging id of the originating connection.
func GetDebuggingID(evt Event) string {
	return evt.GetExtensionString(ExtDebuggingID)
}

// SetTraceID stores the trace id on the event.
func SetTraceID(evt *Event, traceID string) {
	if traceID == "" {
		return
	}
	if evt.Extensions == nil {
		evt.Extensions = make(map[string]any)
	}
	evt.Extensions[ExtTraceID] = traceID
}

// GetTraceID returns the trace id, or "" when none was recorded.
func GetTraceID(evt Event) string {
	return evt.GetExtensionString(ExtTraceID)
}
