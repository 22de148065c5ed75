package console

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultLogCapacity is how many entries the console log keeps.
const DefaultLogCapacity = 25

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// LogEntry is one executed or rejected command.
type LogEntry struct {
	ID     ulid.ULID `json:"id"`
	Input  string    `json:"input"`
	Output string    `json:"output"`
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`
}

// Log is an ordered, bounded record of console entries, oldest first.
type Log struct {
	mu        sync.Mutex
	capacity  int
	entries   []LogEntry
	entropy   io.Reader
	now       func() time.Time
	observers observers[LogEntry]
}

func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultLogCapacity
	}
	return &Log{
		capacity: capacity,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		now:      time.Now,
	}
}

// Append adds an entry at the end, evicting from the front past capacity.
func (l *Log) Append(input, output string, kind Kind) LogEntry {
	l.mu.Lock()
	at := l.now()
	entry := LogEntry{
		ID:     ulid.MustNew(ulid.Timestamp(at), l.entropy),
		Input:  input,
		Output: output,
		Kind:   kind,
		At:     at,
	}
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = append([]LogEntry(nil), l.entries[over:]...)
	}
	l.mu.Unlock()
	l.observers.notify(entry)
	return entry
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) Capacity() int {
	return l.capacity
}

// Last returns the newest entry.
func (l *Log) Last() (LogEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return LogEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Subscribe registers fn for every appended entry. The returned func removes it.
func (l *Log) Subscribe(fn func(LogEntry)) func() {
	return l.observers.add(fn)
}

// observers is a registry of change callbacks. Callbacks run on the
// goroutine that made the change, outside the owner's lock.
type observers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (o *observers[T]) add(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = map[int]func(T){}
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

func (o *observers[T]) notify(v T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.fns))
	for i := 0; i < o.next; i++ {
		if fn, ok := o.fns[i]; ok {
			fns = append(fns, fn)
		}
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}
