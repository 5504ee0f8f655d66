package runtime

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLogKeepsNewestFiveHundred(t *testing.T) {
	log := NewConsoleLog(0)
	require.Equal(t, 500, log.Cap())

	evictions := 0
	log.onEvict = func() { evictions++ }

	for i := 1; i <= 501; i++ {
		log.Push(ConsoleMessage{Type: "log", Args: []any{i}})
	}
	assert.Equal(t, 500, log.Len())
	assert.Equal(t, 1, evictions)

	for want := 2; want <= 501; want++ {
		msg, ok := log.Pop()
		require.True(t, ok)
		require.Equal(t, []any{want}, msg.Args, fmt.Sprintf("entry %d", want))
	}

	_, ok := log.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, log.Len())
}

func TestConsoleLogPushReportsEviction(t *testing.T) {
	log := NewConsoleLog(2)

	assert.False(t, log.Push(ConsoleMessage{Type: "a"}))
	assert.False(t, log.Push(ConsoleMessage{Type: "b"}))
	assert.True(t, log.Push(ConsoleMessage{Type: "c"}))

	msg, _ := log.Pop()
	assert.Equal(t, "b", msg.Type)

	assert.False(t, log.Push(ConsoleMessage{Type: "d"}))
	msg, _ = log.Pop()
	assert.Equal(t, "c", msg.Type)
	msg, _ = log.Pop()
	assert.Equal(t, "d", msg.Type)
}
