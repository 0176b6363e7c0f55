package notify

import (
	"strings"
	"sync"
	"time"
)

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

const (
	// DefaultTTL is how long an entry stays visible unless dismissed.
	DefaultTTL = 4 * time.Second
	// DefaultCapacity bounds the number of visible entries.
	DefaultCapacity = 5
)

// Entry is one visible notification.
type Entry struct {
	ID        uint64
	Kind      Kind
	Message   string
	CreatedAt time.Time
	TTL       time.Duration
}

// Queue is a bounded FIFO of notifications, each with its own dismiss timer.
// When full, the oldest entry is evicted so a new message is never dropped.
type Queue struct {
	mu       sync.Mutex
	entries  []Entry
	timers   map[uint64]*time.Timer
	subs     map[uint64]chan []Entry
	capacity int
	ttl      time.Duration
	nextID   uint64
	nextSub  uint64
	closed   bool
	now      func() time.Time
}

// NewQueue creates a queue. Non-positive arguments fall back to the defaults.
func NewQueue(capacity int, ttl time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		entries:  make([]Entry, 0, capacity),
		timers:   make(map[uint64]*time.Timer),
		subs:     make(map[uint64]chan []Entry),
		capacity: capacity,
		ttl:      ttl,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Show enqueues a message with the default TTL and returns its id.
func (q *Queue) Show(kind Kind, message string) uint64 {
	return q.ShowFor(kind, message, q.ttl)
}

// ShowFor enqueues a message that auto-dismisses after ttl. Returns 0 after Close.
func (q *Queue) ShowFor(kind Kind, message string, ttl time.Duration) uint64 {
	if ttl <= 0 {
		ttl = q.ttl
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}

	q.nextID++
	id := q.nextID
	q.entries = append(q.entries, Entry{
		ID:        id,
		Kind:      kind,
		Message:   strings.TrimSpace(message),
		CreatedAt: q.now(),
		TTL:       ttl,
	})
	q.timers[id] = time.AfterFunc(ttl, func() { q.Dismiss(id) })
	for len(q.entries) > q.capacity {
		q.removeLocked(q.entries[0].ID)
	}
	q.publishLocked()
	return id
}

// Dismiss removes an entry. It reports whether the entry was still visible.
func (q *Queue) Dismiss(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.removeLocked(id) {
		return false
	}
	q.publishLocked()
	return true
}

// Entries returns the visible entries, oldest first.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Subscribe returns a channel receiving the entry list after every change and a cancel func.
// Slow subscribers only see the latest snapshot.
func (q *Queue) Subscribe() (<-chan []Entry, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan []Entry, 1)
	if q.closed {
		close(ch)
		return ch, func() {}
	}
	q.nextSub++
	subID := q.nextSub
	q.subs[subID] = ch
	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if sub, ok := q.subs[subID]; ok {
			delete(q.subs, subID)
			close(sub)
		}
	}
}

// Close stops all timers, clears the queue and closes subscriber channels.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.entries = nil
	for id, ch := range q.subs {
		delete(q.subs, id)
		close(ch)
	}
}

func (q *Queue) removeLocked(id uint64) bool {
	for i, e := range q.entries {
		if e.ID != id {
			continue
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		if t, ok := q.timers[id]; ok {
			t.Stop()
			delete(q.timers, id)
		}
		return true
	}
	return false
}

func (q *Queue) snapshotLocked() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) publishLocked() {
	snapshot := q.snapshotLocked()
	for _, ch := range q.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
