package runtime

import (
	"net/http"
	"time"

	"github.com/drblury/cdpflow/internal/runtime/jsoncodec"
)

// Stats is a point-in-time view of a connection.
type Stats struct {
	DebuggingID        string    `json:"debugging_id"`
	Closed             bool      `json:"closed"`
	StartedAt          time.Time `json:"started_at"`
	UptimeSeconds      float64   `json:"uptime_seconds"`
	LastCallID         int64     `json:"last_call_id"`
	PendingCalls       []int64   `json:"pending_calls"`
	Handlers           []string  `json:"handlers"`
	MessagesDispatched uint64    `json:"messages_dispatched"`
	ConsoleBuffered    int       `json:"console_buffered"`
	ConsoleCapacity    int       `json:"console_capacity"`
	FailurePending     bool      `json:"failure_pending"`
}

// Stats collects the current connection state.
func (c *Connection) Stats() Stats {
	return Stats{
		DebuggingID:        c.DebuggingID(),
		Closed:             c.Closed(),
		StartedAt:          c.startedAt,
		UptimeSeconds:      time.Since(c.startedAt).Seconds(),
		LastCallID:         c.nextID.Load(),
		PendingCalls:       c.pending.IDs(),
		Handlers:           c.handlers.Names(),
		MessagesDispatched: c.dispatched.Load(),
		ConsoleBuffered:    c.console.Len(),
		ConsoleCapacity:    c.console.Cap(),
		FailurePending:     c.relay.Pending(),
	}
}

// StatsHandler serves Stats as JSON.
func (c *Connection) StatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := jsoncodec.Encode(w, c.Stats()); err != nil {
			c.Logger.Error("Failed to encode stats", err, nil)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}
