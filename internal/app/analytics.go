package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"tg-quiz-miniapp/internal/domain"
	"github.com/google/uuid"
)

// AnonymousUserID is used when the host environment provides no identity.
const AnonymousUserID = "anonymous"

// EventDeliverer posts one telemetry event to the backend.
type EventDeliverer interface {
	DeliverEvent(ctx context.Context, event domain.TelemetryEvent) error
}

// EventQueue is the bounded durable buffer for events that failed
// delivery. Enqueue evicts the oldest entry past domain.QueueCap;
// DrainAttempt tries every entry and keeps only the ones that still fail,
// preserving their relative order. Storage faults degrade the queue to
// empty rather than erroring.
type EventQueue interface {
	Enqueue(event domain.TelemetryEvent)
	DrainAttempt(ctx context.Context, deliver func(context.Context, domain.TelemetryEvent) error)
	Events() []domain.TelemetryEvent
}

// Tracker builds telemetry events for one session and delivers them with
// an at-least-once guarantee: an event that cannot be delivered is parked
// in the queue and retried later. Delivery never surfaces to the caller;
// analytics must not interrupt quiz interaction.
//
// One Tracker is constructed per session. Events are handed to a single
// dispatcher goroutine, so delivery is attempted in emission order.
type Tracker struct {
	deliverer   EventDeliverer
	queue       EventQueue
	userID      string
	sessionID   string
	attribution domain.AttributionContext
	now         func() time.Time

	pending   chan domain.TelemetryEvent
	wg        sync.WaitGroup
	closeOnce sync.Once
	retryOnce sync.Once
}

// NewTracker starts the dispatcher. An empty userID falls back to
// AnonymousUserID.
func NewTracker(deliverer EventDeliverer, queue EventQueue, userID string, attribution domain.AttributionContext) *Tracker {
	return NewTrackerWithClock(deliverer, queue, userID, attribution, time.Now)
}

// NewTrackerWithClock is test-only for deterministic timestamps.
func NewTrackerWithClock(deliverer EventDeliverer, queue EventQueue, userID string, attribution domain.AttributionContext, now func() time.Time) *Tracker {
	if userID == "" {
		userID = AnonymousUserID
	}
	t := &Tracker{
		deliverer:   deliverer,
		queue:       queue,
		userID:      userID,
		sessionID:   NewSessionID(now()),
		attribution: attribution,
		now:         now,
		pending:     make(chan domain.TelemetryEvent, 64),
	}
	go t.dispatch()
	return t
}

// NewSessionID composes the session-stable identifier from a millisecond
// timestamp and a random suffix.
func NewSessionID(now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%d_%s", now.UnixMilli(), suffix)
}

// SessionID returns the per-session identifier shared by every event.
func (t *Tracker) SessionID() string { return t.sessionID }

// UserID returns the resolved user identifier.
func (t *Tracker) UserID() string { return t.userID }

// Attribution returns the session's marketing context.
func (t *Tracker) Attribution() domain.AttributionContext { return t.attribution }

// Track builds an event and queues it for an immediate delivery attempt.
// It never blocks on network I/O and never returns an error.
func (t *Tracker) Track(action string, details any) {
	event := domain.TelemetryEvent{
		UserID:     t.userID,
		CampaignID: t.attribution.CampaignID,
		Action:     action,
		Details:    details,
		Timestamp:  t.now(),
		SessionID:  t.sessionID,
		Source:     t.attribution.Source,
		Medium:     t.attribution.Medium,
		Referrer:   t.attribution.Referrer,
	}
	t.wg.Add(1)
	t.pending <- event
}

func (t *Tracker) dispatch() {
	for event := range t.pending {
		if err := t.deliverer.DeliverEvent(context.Background(), event); err != nil {
			log.Printf("analytics: delivery of %s failed, queued for retry: %v", event.Action, err)
			if t.queue != nil {
				t.queue.Enqueue(event)
			}
		}
		t.wg.Done()
	}
}

// Close stops the dispatcher; already-emitted events still settle. Session
// teardown does not await in-flight deliveries beyond that.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() { close(t.pending) })
}

// Wait blocks until every emitted event has either been delivered or
// parked in the queue. Tests use it to synchronize with the dispatcher.
func (t *Tracker) Wait() { t.wg.Wait() }

// RetryFailedEvents drains the queue, attempting every entry concurrently.
// Entries that succeed are removed; entries that still fail stay queued in
// order for a later session.
func (t *Tracker) RetryFailedEvents(ctx context.Context) {
	if t.queue == nil {
		return
	}
	t.queue.DrainAttempt(ctx, t.deliverer.DeliverEvent)
}

// ScheduleRetry arms the one-shot retry drain that follows session load,
// keeping it off the quiz-taking hot path.
func (t *Tracker) ScheduleRetry(delay time.Duration) {
	t.retryOnce.Do(func() {
		time.AfterFunc(delay, func() {
			t.RetryFailedEvents(context.Background())
		})
	})
}

// SessionStart records the session bootstrap.
func (t *Tracker) SessionStart(details domain.SessionStartDetails) {
	t.Track(domain.ActionSessionStart, details)
}

// QuizStart records the user entering a quiz.
func (t *Tracker) QuizStart(quizID, quizName string) {
	t.Track(domain.ActionQuizStart, domain.QuizStartDetails{QuizID: quizID, QuizName: quizName})
}

// QuestionAnswered records one confirmed answer.
func (t *Tracker) QuestionAnswered(quizID string, questionID, answer int, correct bool) {
	t.Track(domain.ActionQuestionAnswered, domain.QuestionAnsweredDetails{
		QuizID:     quizID,
		QuestionID: questionID,
		Answer:     answer,
		IsCorrect:  correct,
	})
}

// QuizComplete records the terminal score.
func (t *Tracker) QuizComplete(quizID string, score, total int) {
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(score) / float64(total) * 100))
	}
	t.Track(domain.ActionQuizComplete, domain.QuizCompleteDetails{
		QuizID:     quizID,
		Score:      score,
		Total:      total,
		Percentage: percentage,
	})
}

// QuizOutcome records whether the session crossed the winner threshold.
func (t *Tracker) QuizOutcome(quizID string, outcome domain.Outcome) {
	action := domain.ActionQuizNotWinner
	if outcome.IsWinner {
		action = domain.ActionQuizWinner
	}
	t.Track(action, domain.OutcomeDetails{QuizID: quizID, Score: outcome.Correct, Total: outcome.Total})
}

// PageView records a screen render.
func (t *Tracker) PageView(page string) {
	t.Track(domain.ActionPageView, domain.PageViewDetails{Page: page})
}

// ButtonClick records a UI interaction.
func (t *Tracker) ButtonClick(buttonName, page string) {
	t.Track(domain.ActionButtonClick, domain.ButtonClickDetails{ButtonName: buttonName, Page: page})
}

// PromoLinkClicked records promotional engagement.
func (t *Tracker) PromoLinkClicked(quizID string) {
	t.Track(domain.ActionPromoLinkClicked, domain.PromoLinkDetails{
		QuizID:     quizID,
		CampaignID: t.attribution.CampaignID,
	})
}
