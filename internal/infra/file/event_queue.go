package file

import (
	"context"
	"log"
	"sync"

	"tg-quiz-miniapp/internal/domain"
)

// EventQueue persists the telemetry retry queue as one JSON array on disk,
// bounded at domain.QueueCap with oldest-first eviction. A corrupt or
// unreadable file degrades to an empty queue; queue storage must never
// block quiz play.
type EventQueue struct {
	path string
	cap  int

	mu      sync.Mutex
	entries []domain.TelemetryEvent
}

func NewEventQueue(path string) *EventQueue {
	return NewEventQueueWithCap(path, domain.QueueCap)
}

func NewEventQueueWithCap(path string, capacity int) *EventQueue {
	q := &EventQueue{path: path, cap: capacity}
	ok, err := readJSON(path, &q.entries)
	if err != nil {
		log.Printf("analytics queue: load failed, starting empty: %v", err)
	}
	if !ok || err != nil {
		q.entries = nil
	}
	return q
}

func (q *EventQueue) Enqueue(event domain.TelemetryEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, event)
	if len(q.entries) > q.cap {
		q.entries = q.entries[len(q.entries)-q.cap:]
	}
	q.persistLocked()
}

// DrainAttempt delivers every queued entry concurrently; the file is
// rewritten as each success lands so a crash mid-drain loses nothing that
// was not delivered. Failures keep their original order. Removal matches
// the delivered entry against the live queue, so an event enqueued (or
// evicted at cap) while the drain runs is untouched.
func (q *EventQueue) DrainAttempt(ctx context.Context, deliver func(context.Context, domain.TelemetryEvent) error) {
	q.mu.Lock()
	snapshot := append([]domain.TelemetryEvent(nil), q.entries...)
	q.mu.Unlock()
	if len(snapshot) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range snapshot {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if deliver(ctx, snapshot[i]) != nil {
				return
			}
			q.mu.Lock()
			q.entries = removeFirst(q.entries, snapshot[i])
			q.persistLocked()
			q.mu.Unlock()
		}(i)
	}
	wg.Wait()
}

// removeFirst drops the first entry identical to event. A delivered entry
// that was already evicted by a concurrent Enqueue matches nothing and
// removes nothing.
func removeFirst(entries []domain.TelemetryEvent, event domain.TelemetryEvent) []domain.TelemetryEvent {
	for i := range entries {
		if entries[i].Matches(event) {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// Events returns a copy of the queued entries in order.
func (q *EventQueue) Events() []domain.TelemetryEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.TelemetryEvent(nil), q.entries...)
}

// Len reports the number of queued entries.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *EventQueue) persistLocked() {
	if err := writeJSON(q.path, q.entries); err != nil {
		log.Printf("analytics queue: persist failed: %v", err)
	}
}
