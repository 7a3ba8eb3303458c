// Package file persists the mini-app's two local slots (quiz progress and
// the telemetry retry queue) as JSON files, surviving app restarts the way
// the web build survives them in localStorage.
package file

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"tg-quiz-miniapp/internal/domain"
)

// ProgressStore keeps one StoredProgress slot in a JSON file. All storage
// faults are logged and swallowed: progress persistence is best-effort.
type ProgressStore struct {
	path  string
	ttl   time.Duration
	clock func() time.Time
}

func NewProgressStore(path string) *ProgressStore {
	return NewProgressStoreWithClock(path, domain.ProgressTTL, time.Now)
}

// NewProgressStoreWithTTL overrides the default resume window.
func NewProgressStoreWithTTL(path string, ttl time.Duration) *ProgressStore {
	return NewProgressStoreWithClock(path, ttl, time.Now)
}

// NewProgressStoreWithClock allows deterministic TTL checks in tests.
func NewProgressStoreWithClock(path string, ttl time.Duration, clock func() time.Time) *ProgressStore {
	return &ProgressStore{path: path, ttl: ttl, clock: clock}
}

func (s *ProgressStore) Save(quizID string, state domain.QuizState) {
	slot := domain.StoredProgress{QuizID: quizID, State: state, Timestamp: s.clock()}
	if err := writeJSON(s.path, slot); err != nil {
		log.Printf("progress: save failed: %v", err)
	}
}

// Load returns the stored state only if it belongs to quizID and is
// younger than the TTL; anything else purges the slot.
func (s *ProgressStore) Load(quizID string) (domain.QuizState, bool) {
	var slot domain.StoredProgress
	ok, err := readJSON(s.path, &slot)
	if err != nil {
		log.Printf("progress: load failed, treating as absent: %v", err)
		s.Clear()
		return domain.QuizState{}, false
	}
	if !ok {
		return domain.QuizState{}, false
	}
	if slot.QuizID != quizID || s.clock().Sub(slot.Timestamp) >= s.ttl {
		s.Clear()
		return domain.QuizState{}, false
	}
	return slot.State, true
}

func (s *ProgressStore) Clear() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("progress: clear failed: %v", err)
	}
}

// writeJSON writes via a temp file and rename so a crash never leaves a
// half-written slot.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readJSON reports ok=false when the slot does not exist.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}
