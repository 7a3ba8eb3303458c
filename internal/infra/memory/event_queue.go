package memory

import (
	"context"
	"sync"

	"tg-quiz-miniapp/internal/domain"
)

// EventQueue is the in-memory implementation of app.EventQueue: a FIFO
// bounded at domain.QueueCap with oldest-first eviction.
type EventQueue struct {
	cap int

	mu      sync.Mutex
	entries []domain.TelemetryEvent
}

func NewEventQueue() *EventQueue {
	return NewEventQueueWithCap(domain.QueueCap)
}

func NewEventQueueWithCap(capacity int) *EventQueue {
	return &EventQueue{cap: capacity}
}

func (q *EventQueue) Enqueue(event domain.TelemetryEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, event)
	if len(q.entries) > q.cap {
		q.entries = q.entries[len(q.entries)-q.cap:]
	}
}

// DrainAttempt delivers every queued entry concurrently. Each success
// removes exactly that entry as its result lands, so a crash mid-drain
// loses no still-undelivered entry; failures keep their original order.
// Removal matches the delivered entry against the live queue, so an event
// enqueued (or evicted at cap) while the drain runs is untouched.
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
