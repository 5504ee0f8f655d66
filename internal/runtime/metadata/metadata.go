// Package metadata holds the headers attached to forwarded events.
package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// Header keys set on every forwarded message. They mirror the CloudEvents
// binary-mode attribute names so consumers can route without decoding.
const (
	KeyEventID     = "ce_id"
	KeyEventType   = "ce_type"
	KeySource      = "ce_source"
	KeyMethod      = "cdp_method"
	KeySessionID   = "cdp_session_id"
	KeyDebuggingID = "debugging_id"
	KeyContentType = "content_type"
)

// Metadata represents the headers carried alongside a forwarded event.
type Metadata map[string]string

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a copy containing key=value. Empty values are skipped.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	if value != "" {
		cloned[key] = value
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
// A trailing key without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// ToWatermill copies the headers into a Watermill metadata map.
func ToWatermill(md Metadata) message.Metadata {
	wm := make(message.Metadata, len(md))
	for k, v := range md {
		wm[k] = v
	}
	return wm
}

// FromWatermill copies Watermill metadata into a Metadata map.
func FromWatermill(md message.Metadata) Metadata {
	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}
