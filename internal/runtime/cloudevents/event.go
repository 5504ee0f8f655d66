// Package cloudevents wraps inbound DevTools events in CloudEvents v1.0
// envelopes before they are forwarded to an event sink.
package cloudevents

import (
	"fmt"
	"time"

	idspkg "github.com/drblury/cdpflow/internal/runtime/ids"
	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
)

// SpecVersion is the CloudEvents version written into every envelope.
const SpecVersion = "1.0"

// ContentTypeJSON is the data content type of every forwarded event.
const ContentTypeJSON = "application/json"

// TypePrefix is prepended to the DevTools method to form the event type,
// e.g. "cdp.Page.loadEventFired".
const TypePrefix = "cdp."

// Event is a CloudEvents v1.0 event. Extensions are flattened into the
// top-level JSON object when marshalled.
type Event struct {
	SpecVersion     string
	Type            string
	Source          string
	ID              string
	Time            time.Time
	DataContentType string
	Subject         string
	Data            any
	Extensions      map[string]any
}

// New creates an event with a ULID id and the current UTC time.
func New(eventType, source string, data any) Event {
	return Event{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          source,
		ID:              idspkg.CreateULID(),
		Time:            time.Now().UTC(),
		DataContentType: ContentTypeJSON,
		Data:            data,
		Extensions:      make(map[string]any),
	}
}

// WithSubject sets the subject and returns the event.
func (e Event) WithSubject(subject string) Event {
	e.Subject = subject
	return e
}

// WithExtension sets an extension attribute and returns the event.
func (e Event) WithExtension(key string, value any) Event {
	if e.Extensions == nil {
		e.Extensions = make(map[string]any)
	}
	e.Extensions[key] = value
	return e
}

// GetExtensionString returns an extension as a string, or "" when absent.
func (e Event) GetExtensionString(key string) string {
	v, ok := e.Extensions[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Validate checks that the event has all required CloudEvents attributes.
func (e Event) Validate() error {
	if e.SpecVersion != SpecVersion {
		return fmt.Errorf("specversion must be %q, got %q", SpecVersion, e.SpecVersion)
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

var knownAttrs = map[string]bool{
	"specversion":     true,
	"type":            true,
	"source":          true,
	"id":              true,
	"time":            true,
	"datacontenttype": true,
	"subject":         true,
	"data":            true,
}

// MarshalJSON encodes the structured-mode CloudEvents JSON format.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(knownAttrs)+len(e.Extensions))
	for k, v := range e.Extensions {
		m[k] = v
	}

	m["specversion"] = e.SpecVersion
	m["type"] = e.Type
	m["source"] = e.Source
	m["id"] = e.ID
	if !e.Time.IsZero() {
		m["time"] = e.Time.Format(time.RFC3339Nano)
	}
	if e.DataContentType != "" {
		m["datacontenttype"] = e.DataContentType
	}
	if e.Subject != "" {
		m["subject"] = e.Subject
	}
	if e.Data != nil {
		m["data"] = e.Data
	}
	return jsoncodec.Marshal(m)
}

// UnmarshalJSON decodes the structured-mode CloudEvents JSON format.
func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := jsoncodec.Unmarshal(data, &m); err != nil {
		return err
	}

	str := func(key string) (string, error) {
		v, ok := m[key]
		if !ok || v == nil {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("invalid %s: expected string, got %T", key, v)
		}
		return s, nil
	}

	var err error
	if e.SpecVersion, err = str("specversion"); err != nil {
		return err
	}
	if e.Type, err = str("type"); err != nil {
		return err
	}
	if e.Source, err = str("source"); err != nil {
		return err
	}
	if e.ID, err = str("id"); err != nil {
		return err
	}
	if e.DataContentType, err = str("datacontenttype"); err != nil {
		return err
	}
	if e.Subject, err = str("subject"); err != nil {
		return err
	}
	ts, err := str("time")
	if err != nil {
		return err
	}
	if ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("invalid time format: %w", err)
		}
		e.Time = parsed
	}
	e.Data = m["data"]

	e.Extensions = make(map[string]any)
	for k, v := range m {
		if !knownAttrs[k] {
			e.Extensions[k] = v
		}
	}
	return nil
}
