package memory

import (
	"sync"
	"time"

	"tg-quiz-miniapp/internal/domain"
)

// ProgressStore is the in-memory implementation of app.ProgressStore:
// one shared slot, quiz-scoped, TTL-bounded.
type ProgressStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu   sync.Mutex
	slot *domain.StoredProgress
}

func NewProgressStore() *ProgressStore {
	return NewProgressStoreWithClock(domain.ProgressTTL, time.Now)
}

// NewProgressStoreWithTTL overrides the default resume window.
func NewProgressStoreWithTTL(ttl time.Duration) *ProgressStore {
	return NewProgressStoreWithClock(ttl, time.Now)
}

// NewProgressStoreWithClock allows deterministic TTL checks in tests.
func NewProgressStoreWithClock(ttl time.Duration, clock func() time.Time) *ProgressStore {
	return &ProgressStore{ttl: ttl, clock: clock}
}

func (s *ProgressStore) Save(quizID string, state domain.QuizState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Answers = append([]int(nil), state.Answers...)
	s.slot = &domain.StoredProgress{QuizID: quizID, State: state, Timestamp: s.clock()}
}

// Load returns the stored state only if it belongs to quizID and is
// younger than the TTL; any other slot content is purged.
func (s *ProgressStore) Load(quizID string) (domain.QuizState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return domain.QuizState{}, false
	}
	if s.slot.QuizID != quizID || s.clock().Sub(s.slot.Timestamp) >= s.ttl {
		s.slot = nil
		return domain.QuizState{}, false
	}
	state := s.slot.State
	state.Answers = append([]int(nil), state.Answers...)
	return state, true
}

func (s *ProgressStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = nil
}
