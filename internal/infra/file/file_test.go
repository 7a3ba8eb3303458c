package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tg-quiz-miniapp/internal/domain"
)

func TestProgressSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")

	store := NewProgressStore(path)
	store.Save("quiz-1", domain.QuizState{
		CurrentQuestionIndex: 2,
		Answers:              []int{1, 2},
		StartTime:            time.Now(),
	})

	// A fresh store over the same path models an app restart.
	reopened := NewProgressStore(path)
	state, ok := reopened.Load("quiz-1")
	if !ok {
		t.Fatalf("expected progress after reopen")
	}
	if state.CurrentQuestionIndex != 2 || len(state.Answers) != 2 {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestProgressExpiryPurgesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	now := time.Now()
	clock := func() time.Time { return now }

	store := NewProgressStoreWithClock(path, domain.ProgressTTL, clock)
	store.Save("quiz-1", domain.QuizState{CurrentQuestionIndex: 1, Answers: []int{3}})

	now = now.Add(domain.ProgressTTL + time.Second)
	if _, ok := store.Load("quiz-1"); ok {
		t.Fatalf("expected expired progress to miss")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected slot file purged, stat err=%v", err)
	}
}

func TestProgressCorruptSlotDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	store := NewProgressStore(path)
	if _, ok := store.Load("quiz-1"); ok {
		t.Fatalf("expected corrupt slot to read as absent")
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	queue := NewEventQueue(path)
	queue.Enqueue(domain.TelemetryEvent{Action: "a", SessionID: "s1"})
	queue.Enqueue(domain.TelemetryEvent{Action: "b", SessionID: "s1"})

	reopened := NewEventQueue(path)
	events := reopened.Events()
	if len(events) != 2 || events[0].Action != "a" || events[1].Action != "b" {
		t.Fatalf("expected persisted queue [a b], got %+v", events)
	}
}

func TestQueueDrainPersistsRemainder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	queue := NewEventQueue(path)
	for _, action := range []string{"a", "b", "c"} {
		queue.Enqueue(domain.TelemetryEvent{Action: action})
	}

	queue.DrainAttempt(context.Background(), func(_ context.Context, e domain.TelemetryEvent) error {
		if e.Action == "b" {
			return errors.New("still down")
		}
		return nil
	})

	reopened := NewEventQueue(path)
	events := reopened.Events()
	if len(events) != 1 || events[0].Action != "b" {
		t.Fatalf("expected only b persisted, got %+v", events)
	}
}

func TestQueueDrainEnqueueAtCapKeepsNewEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	queue := NewEventQueueWithCap(path, 2)
	queue.Enqueue(domain.TelemetryEvent{Action: "e1"})
	queue.Enqueue(domain.TelemetryEvent{Action: "e2"})

	queue.DrainAttempt(context.Background(), func(_ context.Context, e domain.TelemetryEvent) error {
		switch e.Action {
		case "e1":
			// Lands on the full queue, evicting e1 before its delivery
			// result comes back.
			queue.Enqueue(domain.TelemetryEvent{Action: "e3"})
			return nil
		default:
			return errors.New("still down")
		}
	})

	reopened := NewEventQueue(path)
	events := reopened.Events()
	if len(events) != 2 || events[0].Action != "e2" || events[1].Action != "e3" {
		t.Fatalf("expected [e2 e3] persisted, got %+v", events)
	}
}

func TestQueueCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("]["), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	queue := NewEventQueue(path)
	if queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d entries", queue.Len())
	}
}
