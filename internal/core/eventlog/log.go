package eventlog

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Listener receives every appended entry.
type Listener func(Entry)

// Log is an ordered, append-only sequence of entries.
// PRINCIPLES:
// - Append order is the only order; entries are never reordered or edited
// - Listeners are called synchronously, in append order
type Log struct {
	mu        sync.RWMutex
	entries   []Entry
	now       func() time.Time
	newID     func() string
	notifyMu  sync.Mutex
	listeners []subscription
	nextSub   int
}

type subscription struct {
	id int
	fn Listener
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDFunc overrides the entry id source.
func WithIDFunc(fn func() string) Option {
	return func(l *Log) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stamps d with an id and timestamp and appends it.
func (l *Log) Append(d Draft) Entry {
	if !d.Severity.Valid() {
		d.Severity = SeverityInfo
	}

	// notifyMu spans append and notification so listeners observe the
	// same order as Entries.
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	e := Entry{
		ID:        l.newID(),
		Timestamp: l.now(),
		NodeID:    d.NodeID,
		NodeLabel: d.NodeLabel,
		Message:   d.Message,
		Severity:  d.Severity,
	}
	l.entries = append(l.entries, e)
	listeners := make([]Listener, len(l.listeners))
	for i, sub := range l.listeners {
		listeners[i] = sub.fn
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
	return e
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Entries returns a copy of all entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Subscribe registers fn and returns a function that removes it.
// fn must not call Subscribe or Append on the same log.
func (l *Log) Subscribe(fn Listener) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.listeners = append(l.listeners, subscription{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.listeners = slices.DeleteFunc(l.listeners, func(s subscription) bool { return s.id == id })
			l.mu.Unlock()
		})
	}
}
