package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"tg-quiz-miniapp/internal/domain"
	"github.com/redis/go-redis/v9"
)

// EventQueue stores the telemetry retry queue as one serialized JSON blob
// under a single key, mirroring the file layout. In-process mutation goes
// through a mutex; the drain rewrites the blob as each success lands.
// Redis faults degrade the queue to empty.
type EventQueue struct {
	client *redis.Client
	key    string
	cap    int

	mu sync.Mutex
}

func NewEventQueue(client *redis.Client, key string) *EventQueue {
	return NewEventQueueWithCap(client, key, domain.QueueCap)
}

func NewEventQueueWithCap(client *redis.Client, key string, capacity int) *EventQueue {
	return &EventQueue{client: client, key: key, cap: capacity}
}

func (q *EventQueue) Enqueue(event domain.TelemetryEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.loadLocked()
	entries = append(entries, event)
	if len(entries) > q.cap {
		entries = entries[len(entries)-q.cap:]
	}
	q.storeLocked(entries)
}

// DrainAttempt delivers every queued entry concurrently, rewriting the
// blob per success so failures keep their original order and nothing
// undelivered is lost mid-drain. Removal matches the delivered entry
// against the live blob, so an event enqueued (or evicted at cap) while
// the drain runs is untouched.
func (q *EventQueue) DrainAttempt(ctx context.Context, deliver func(context.Context, domain.TelemetryEvent) error) {
	q.mu.Lock()
	snapshot := q.loadLocked()
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
			q.storeLocked(removeFirst(q.loadLocked(), snapshot[i]))
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
	return q.loadLocked()
}

// Len reports the number of queued entries.
func (q *EventQueue) Len() int {
	return len(q.Events())
}

func (q *EventQueue) loadLocked() []domain.TelemetryEvent {
	data, err := q.client.Get(context.Background(), q.key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Printf("analytics queue: redis load failed, treating as empty: %v", err)
		return nil
	}
	var entries []domain.TelemetryEvent
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("analytics queue: corrupt blob, treating as empty: %v", err)
		return nil
	}
	return entries
}

func (q *EventQueue) storeLocked(entries []domain.TelemetryEvent) {
	if len(entries) == 0 {
		if err := q.client.Del(context.Background(), q.key).Err(); err != nil {
			log.Printf("analytics queue: redis clear failed: %v", err)
		}
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		log.Printf("analytics queue: marshal failed: %v", err)
		return
	}
	if err := q.client.Set(context.Background(), q.key, data, 0).Err(); err != nil {
		log.Printf("analytics queue: redis save failed: %v", err)
	}
}
