package runtime

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	errspkg "github.com/drblury/cdpflow/internal/runtime/errors"
	"github.com/drblury/cdpflow/internal/runtime/protocol"
)

type callOutcome struct {
	msg protocol.Message
	err error
}

// PendingCall is an issued command awaiting its response. Its result slot
// is written at most once: by the matching response or by a relayed failure.
type PendingCall struct {
	ID        int64
	Method    string
	StartedAt time.Time

	handlerID atomic.Uint64
	result    chan callOutcome
	once      sync.Once
	resolved  atomic.Bool
}

func newPendingCall(id int64, method string) *PendingCall {
	return &PendingCall{
		ID:        id,
		Method:    method,
		StartedAt: time.Now(),
		result:    make(chan callOutcome, 1),
	}
}

// resolve fills the slot. Later calls are ignored; it reports whether this
// call won.
func (p *PendingCall) resolve(msg protocol.Message, err error) bool {
	won := false
	p.once.Do(func() {
		p.result <- callOutcome{msg: msg, err: err}
		p.resolved.Store(true)
		won = true
	})
	return won
}

// Resolved reports whether the slot has been filled.
func (p *PendingCall) Resolved() bool {
	return p.resolved.Load()
}

// wait blocks until the slot is filled, timeout elapses, or ctx is done.
func (p *PendingCall) wait(ctx context.Context, timeout time.Duration) (protocol.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-p.result:
		return out.msg, out.err
	case <-timer.C:
		return protocol.Message{}, &errspkg.CallTimeoutError{ID: p.ID, Method: p.Method, Timeout: timeout}
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

// PendingRegistry tracks the calls that are waiting for a response.
type PendingRegistry struct {
	mu    sync.Mutex
	calls map[int64]*PendingCall
}

// NewPendingRegistry returns an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{calls: make(map[int64]*PendingCall)}
}

func (r *PendingRegistry) add(call *PendingCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[call.ID] = call
}

func (r *PendingRegistry) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, id)
}

// Get returns the pending call with id.
func (r *PendingRegistry) Get(id int64) (*PendingCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[id]
	return call, ok
}

// Len returns the number of calls in flight.
func (r *PendingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// IDs lists the in-flight call ids in ascending order.
func (r *PendingRegistry) IDs() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.calls))
	for id := range r.calls {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
