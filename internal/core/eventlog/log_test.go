package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func TestLog_AppendOrder(t *testing.T) {
	var seq int
	l := New(WithClock(fixedClock()), WithIDFunc(func() string {
		seq++
		return fmt.Sprintf("log-%d", seq)
	}))

	l.Append(System("Starting workflow execution...", SeverityInfo))
	l.Append(Draft{NodeID: "1", NodeLabel: "Manual Start", Message: "Manual trigger activated.", Severity: SeverityInfo})
	l.Append(System("Workflow execution finished.", SeveritySuccess))

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "log-1", entries[0].ID)
	assert.True(t, entries[0].IsSystem())
	assert.Equal(t, "1", entries[1].NodeID)
	assert.True(t, entries[1].Timestamp.After(entries[0].Timestamp))

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, SystemNodeID, last.NodeID)
	assert.Equal(t, SystemLabel, last.NodeLabel)
	assert.Equal(t, SeveritySuccess, last.Severity)
}

func TestLog_UnknownSeverityBecomesInfo(t *testing.T) {
	l := New()
	e := l.Append(Draft{Message: "x", Severity: "fatal"})
	assert.Equal(t, SeverityInfo, e.Severity)
}

func TestLog_Clear(t *testing.T) {
	l := New()
	l.Append(System("a", SeverityInfo))
	l.Append(System("b", SeverityInfo))
	assert.Equal(t, 2, l.Len())

	l.Clear()
	assert.Equal(t, 0, l.Len())
	_, ok := l.Last()
	assert.False(t, ok)
}

func TestLog_EntriesAreCopies(t *testing.T) {
	l := New()
	l.Append(System("a", SeverityInfo))
	entries := l.Entries()
	entries[0].Message = "changed"
	assert.Equal(t, "a", l.Entries()[0].Message)
}

func TestLog_Subscribe(t *testing.T) {
	l := New()
	var got []string
	unsubscribe := l.Subscribe(func(e Entry) { got = append(got, e.Message) })

	l.Append(System("one", SeverityInfo))
	l.Append(System("two", SeverityInfo))
	unsubscribe()
	unsubscribe()
	l.Append(System("three", SeverityInfo))

	assert.Equal(t, []string{"one", "two"}, got)
}

func TestLog_UnsubscribeReleasesListener(t *testing.T) {
	l := New()
	var calls []string
	keep := l.Subscribe(func(Entry) { calls = append(calls, "first") })
	defer keep()

	for i := 0; i < 100; i++ {
		l.Subscribe(func(Entry) { calls = append(calls, "gone") })()
	}
	l.Subscribe(func(Entry) { calls = append(calls, "last") })

	assert.Len(t, l.listeners, 2)
	l.Append(System("x", SeverityInfo))
	assert.Equal(t, []string{"first", "last"}, calls)
}

func TestLog_ListenersSeeAppendOrder(t *testing.T) {
	l := New()
	var mu sync.Mutex
	var seen []string
	l.Subscribe(func(e Entry) {
		mu.Lock()
		seen = append(seen, e.ID)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(System("x", SeverityInfo))
		}()
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, seen, len(entries))
	for i, e := range entries {
		assert.Equal(t, e.ID, seen[i])
	}
}
