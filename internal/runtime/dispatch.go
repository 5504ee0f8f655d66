package runtime

import (
	"sync"

	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

// EventHandler observes every inbound message. Handlers must return quickly:
// they run one after another on the pump goroutine. A returned error is
// relayed to the next caller of the connection.
type EventHandler func(msg protocol.Message) error

// HandlerID identifies a registration so it can be removed later.
type HandlerID uint64

// RegisteredHandler is one entry of a registry snapshot.
type RegisteredHandler struct {
	ID      HandlerID
	Name    string
	Handler EventHandler
}

// HandlerRegistry is the ordered set of event handlers of a connection.
// Dispatch iterates a snapshot, so handlers may register or deregister
// themselves (or others) while a message is being dispatched.
type HandlerRegistry struct {
	mu         sync.RWMutex
	nextID     HandlerID
	entries    []RegisteredHandler
	middleware []HandlerMiddleware
}

// NewHandlerRegistry returns a registry that wraps every handler with mw,
// outermost first.
func NewHandlerRegistry(mw ...HandlerMiddleware) *HandlerRegistry {
	return &HandlerRegistry{middleware: mw}
}

// Use appends middleware applied to handlers registered from now on.
func (r *HandlerRegistry) Use(mw ...HandlerMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// Register appends handler, wrapped by the registry middleware, and
// returns its id.
func (r *HandlerRegistry) Register(name string, handler EventHandler) HandlerID {
	return r.add(name, handler, true)
}

// registerBare appends handler without middleware. Used for the one-shot
// result handlers of calls.
func (r *HandlerRegistry) registerBare(name string, handler EventHandler) HandlerID {
	return r.add(name, handler, false)
}

func (r *HandlerRegistry) add(name string, handler EventHandler, wrap bool) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	wrapped := handler
	if wrap {
		for i := len(r.middleware) - 1; i >= 0; i-- {
			wrapped = r.middleware[i](name, wrapped)
		}
	}

	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, RegisteredHandler{ID: id, Name: name, Handler: wrapped})
	return id
}

// Deregister removes the handler with id. Unknown ids are ignored; it
// reports whether something was removed.
func (r *HandlerRegistry) Deregister(id HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot copies the registry in registration order.
func (r *HandlerRegistry) Snapshot() []RegisteredHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredHandler, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names lists the handler names in registration order.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}
