package runtime

import "sync"

// ConsoleMessage is one page console call (console.log, console.error, ...).
type ConsoleMessage struct {
	Type string `json:"type"`
	Args []any  `json:"args"`
}

// ConsoleLog is a bounded FIFO of console messages. Once full, each push
// evicts the oldest entry.
type ConsoleLog struct {
	mu      sync.Mutex
	buf     []ConsoleMessage
	head    int
	size    int
	onEvict func()
}

// NewConsoleLog returns a log holding at most capacity messages.
func NewConsoleLog(capacity int) *ConsoleLog {
	if capacity <= 0 {
		capacity = 500
	}
	return &ConsoleLog{buf: make([]ConsoleMessage, capacity)}
}

// Push appends msg and reports whether the oldest message was evicted.
func (l *ConsoleLog) Push(msg ConsoleMessage) bool {
	l.mu.Lock()
	evicted := false
	tail := (l.head + l.size) % len(l.buf)
	l.buf[tail] = msg
	if l.size == len(l.buf) {
		l.head = (l.head + 1) % len(l.buf)
		evicted = true
	} else {
		l.size++
	}
	onEvict := l.onEvict
	l.mu.Unlock()

	if evicted && onEvict != nil {
		onEvict()
	}
	return evicted
}

// Pop removes and returns the oldest message. It never blocks.
func (l *ConsoleLog) Pop() (ConsoleMessage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size == 0 {
		return ConsoleMessage{}, false
	}
	msg := l.buf[l.head]
	l.buf[l.head] = ConsoleMessage{}
	l.head = (l.head + 1) % len(l.buf)
	l.size--
	return msg, true
}

// Len returns the number of buffered messages.
func (l *ConsoleLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Cap returns the capacity.
func (l *ConsoleLog) Cap() int {
	return len(l.buf)
}
