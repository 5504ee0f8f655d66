package runtime

import "sync"

// FailureRelay hands a failure observed on the pump goroutine to the next
// caller. It holds at most one error; a second capture before the slot is
// drained replaces the first.
type FailureRelay struct {
	mu          sync.Mutex
	err         error
	onOverwrite func(dropped, kept error)
}

// Capture stores err and reports whether an undrained failure was replaced.
func (r *FailureRelay) Capture(err error) bool {
	if err == nil {
		return false
	}
	r.mu.Lock()
	prev := r.err
	r.err = err
	onOverwrite := r.onOverwrite
	r.mu.Unlock()

	if prev != nil && onOverwrite != nil {
		onOverwrite(prev, err)
	}
	return prev != nil
}

// Drain returns the stored failure and clears the slot. Each captured
// failure is returned by exactly one Drain.
func (r *FailureRelay) Drain() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	r.err = nil
	return err
}

// Pending reports whether a failure is waiting to be drained.
func (r *FailureRelay) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err != nil
}
