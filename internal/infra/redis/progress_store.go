package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"tg-quiz-miniapp/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps one StoredProgress slot per user key in Redis.
// The key carries the TTL as a Redis expiry and the stored timestamp is
// still checked on load, so a server with relaxed eviction behaves the
// same as the file store. Faults are logged and swallowed.
type ProgressStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	clock  func() time.Time
}

func NewProgressStore(client *redis.Client, key string) *ProgressStore {
	return NewProgressStoreWithClock(client, key, domain.ProgressTTL, time.Now)
}

// NewProgressStoreWithTTL overrides the default resume window.
func NewProgressStoreWithTTL(client *redis.Client, key string, ttl time.Duration) *ProgressStore {
	return NewProgressStoreWithClock(client, key, ttl, time.Now)
}

// NewProgressStoreWithClock allows deterministic TTL checks in tests.
func NewProgressStoreWithClock(client *redis.Client, key string, ttl time.Duration, clock func() time.Time) *ProgressStore {
	return &ProgressStore{client: client, key: key, ttl: ttl, clock: clock}
}

func (s *ProgressStore) Save(quizID string, state domain.QuizState) {
	slot := domain.StoredProgress{QuizID: quizID, State: state, Timestamp: s.clock()}
	data, err := json.Marshal(slot)
	if err != nil {
		log.Printf("progress: marshal failed: %v", err)
		return
	}
	if err := s.client.Set(context.Background(), s.key, data, s.ttl).Err(); err != nil {
		log.Printf("progress: redis save failed: %v", err)
	}
}

func (s *ProgressStore) Load(quizID string) (domain.QuizState, bool) {
	data, err := s.client.Get(context.Background(), s.key).Bytes()
	if err == redis.Nil {
		return domain.QuizState{}, false
	}
	if err != nil {
		log.Printf("progress: redis load failed, treating as absent: %v", err)
		return domain.QuizState{}, false
	}
	var slot domain.StoredProgress
	if err := json.Unmarshal(data, &slot); err != nil {
		log.Printf("progress: corrupt slot purged: %v", err)
		s.Clear()
		return domain.QuizState{}, false
	}
	if slot.QuizID != quizID || s.clock().Sub(slot.Timestamp) >= s.ttl {
		s.Clear()
		return domain.QuizState{}, false
	}
	return slot.State, true
}

func (s *ProgressStore) Clear() {
	if err := s.client.Del(context.Background(), s.key).Err(); err != nil {
		log.Printf("progress: redis clear failed: %v", err)
	}
}
