package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tg-quiz-miniapp/internal/app"
	"tg-quiz-miniapp/internal/domain"
	"tg-quiz-miniapp/internal/infra/memory"
)

func TestQuestionListCappedAtSix(t *testing.T) {
	c, err := app.NewSessionController(app.SessionConfig{Quiz: quizWithQuestions(8)})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if c.QuestionCount() != domain.MaxQuestions {
		t.Fatalf("expected cap %d, got %d", domain.MaxQuestions, c.QuestionCount())
	}

	c, err = app.NewSessionController(app.SessionConfig{Quiz: quizWithQuestions(3)})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if c.QuestionCount() != 3 {
		t.Fatalf("expected short quiz to keep its length, got %d", c.QuestionCount())
	}
}

func TestEmptyQuizNotReady(t *testing.T) {
	_, err := app.NewSessionController(app.SessionConfig{Quiz: domain.Quiz{QuizID: "quiz-1"}})
	if !errors.Is(err, domain.ErrQuizNotReady) {
		t.Fatalf("expected ErrQuizNotReady, got %v", err)
	}
}

func TestConfirmRequiresSelection(t *testing.T) {
	c := newController(t, quizWithQuestions(6), nil, nil)

	if _, err := c.Confirm(); !errors.Is(err, domain.ErrNoPendingSelection) {
		t.Fatalf("expected ErrNoPendingSelection, got %v", err)
	}
	if c.CurrentIndex() != 0 || len(c.State().Answers) != 0 {
		t.Fatalf("state must be unchanged after rejected confirm")
	}
}

func TestSelectionValidation(t *testing.T) {
	c := newController(t, quizWithQuestions(6), nil, nil)

	if err := c.SelectAnswer(0); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice for 0, got %v", err)
	}
	if err := c.SelectAnswer(4); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice for 4, got %v", err)
	}
	// Changing the pending selection before confirming is allowed.
	if err := c.SelectAnswer(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := c.SelectAnswer(3); err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if _, err := c.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := c.State().Answers[0]; got != 3 {
		t.Fatalf("expected last selection to win, got %d", got)
	}
}

func TestTransitionGuardsDoubleConfirm(t *testing.T) {
	c := newController(t, quizWithQuestions(6), nil, nil)

	mustAnswer(t, c, 1)
	if !c.Transitioning() {
		t.Fatalf("expected transitioning after non-final confirm")
	}
	if err := c.SelectAnswer(2); !errors.Is(err, domain.ErrTransitionInFlight) {
		t.Fatalf("expected select rejected mid-transition, got %v", err)
	}
	if _, err := c.Confirm(); !errors.Is(err, domain.ErrTransitionInFlight) {
		t.Fatalf("expected confirm rejected mid-transition, got %v", err)
	}

	c.EndTransition()
	if err := c.SelectAnswer(2); err != nil {
		t.Fatalf("select after transition: %v", err)
	}
}

func TestFullRunScoresAndReports(t *testing.T) {
	store := memory.NewProgressStore()
	submitter := &stubSubmitter{}
	reporter := app.NewResultReporter(submitter)
	quiz := scenarioQuiz() // correct answers 1,2,1,3,1,1

	c, err := app.NewSessionController(app.SessionConfig{
		Quiz:        quiz,
		UserID:      "42",
		Attribution: domain.AttributionContext{CampaignID: "camp-1"},
		Progress:    store,
		Reporter:    reporter,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	var outcome *domain.Outcome
	for _, answer := range []int{1, 2, 1, 3, 2, 1} {
		outcome = mustAnswer(t, c, answer)
		c.EndTransition()
	}

	if outcome == nil {
		t.Fatalf("expected outcome from final confirm")
	}
	if outcome.Correct != 5 || outcome.Total != 6 || !outcome.IsWinner {
		t.Fatalf("expected 5/6 winner, got %+v", outcome)
	}
	if len(outcome.Answers) != c.QuestionCount() {
		t.Fatalf("expected %d answers, got %d", c.QuestionCount(), len(outcome.Answers))
	}
	if !c.Completed() {
		t.Fatalf("expected completed state")
	}
	if _, ok := store.Load(quiz.QuizID); ok {
		t.Fatalf("expected progress cleared on completion")
	}

	reporter.Wait()
	results := submitter.all()
	if len(results) != 1 {
		t.Fatalf("expected one completion report, got %d", len(results))
	}
	want := domain.QuizResult{TgID: "42", QuizID: quiz.QuizID, QuestionsAnswered: 6, CampaignID: "camp-1", ClickLink: false}
	if results[0] != want {
		t.Fatalf("completion report %+v, want %+v", results[0], want)
	}

	if _, err := c.Confirm(); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted after completion, got %v", err)
	}
	if err := c.SelectAnswer(1); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected select rejected after completion, got %v", err)
	}
}

func TestLoserOutcome(t *testing.T) {
	c := newController(t, scenarioQuiz(), nil, nil)
	var outcome *domain.Outcome
	for range [6]struct{}{} {
		outcome = mustAnswer(t, c, 3) // correct answers are 1,2,1,3,1,1 -> one hit
		c.EndTransition()
	}
	if outcome.Correct != 1 || outcome.IsWinner {
		t.Fatalf("expected 1/6 loser, got %+v", outcome)
	}
}

func TestResumeWithinTTL(t *testing.T) {
	store := memory.NewProgressStore()
	quiz := scenarioQuiz()

	first := newController(t, quiz, store, nil)
	mustAnswer(t, first, 1)
	first.EndTransition()
	mustAnswer(t, first, 2)
	// App restarts here: the controller is discarded mid-transition.

	second := newController(t, quiz, store, nil)
	if !second.Resumed() {
		t.Fatalf("expected resumed session")
	}
	if second.CurrentIndex() != 2 {
		t.Fatalf("expected resume at question 2, got %d", second.CurrentIndex())
	}
	if got := second.State().Answers; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected restored answers [1 2], got %v", got)
	}
}

func TestNoPersistOnPristineFirstQuestion(t *testing.T) {
	store := memory.NewProgressStore()
	quiz := scenarioQuiz()

	c := newController(t, quiz, store, nil)
	if _, ok := store.Load(quiz.QuizID); ok {
		t.Fatalf("fresh session must not persist zero progress")
	}
	if c.Resumed() {
		t.Fatalf("fresh session must not report resume")
	}
}

func TestStaleProgressIgnored(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	store := memory.NewProgressStoreWithClock(domain.ProgressTTL, clock)
	quiz := scenarioQuiz()

	first := newController(t, quiz, store, nil)
	mustAnswer(t, first, 1)

	now = now.Add(domain.ProgressTTL + time.Hour)
	second := newController(t, quiz, store, nil)
	if second.Resumed() || second.CurrentIndex() != 0 {
		t.Fatalf("expected stale progress discarded, index=%d", second.CurrentIndex())
	}
}

func TestShrunkQuizDiscardsProgress(t *testing.T) {
	store := memory.NewProgressStore()
	store.Save("quiz-1", domain.QuizState{CurrentQuestionIndex: 4, Answers: []int{1, 1, 1, 1}})

	quiz := quizWithQuestions(2)
	c := newController(t, quiz, store, nil)
	if c.Resumed() || c.CurrentIndex() != 0 {
		t.Fatalf("expected out-of-range progress discarded")
	}
}

func TestPromoClickGuard(t *testing.T) {
	submitter := &stubSubmitter{}
	reporter := app.NewResultReporter(submitter)
	c := newController(t, scenarioQuiz(), nil, reporter)

	if err := c.PromoClick(context.Background()); !errors.Is(err, domain.ErrSessionNotCompleted) {
		t.Fatalf("expected promo rejected before completion, got %v", err)
	}

	for range [6]struct{}{} {
		mustAnswer(t, c, 1)
		c.EndTransition()
	}
	reporter.Wait()

	// First promo click fails at the backend: the guard must not latch.
	submitter.fail(errors.New("backend down"))
	if err := c.PromoClick(context.Background()); err == nil {
		t.Fatalf("expected promo click to surface delivery error")
	}

	submitter.fail(nil)
	if err := c.PromoClick(context.Background()); err != nil {
		t.Fatalf("promo click: %v", err)
	}
	if err := c.PromoClick(context.Background()); !errors.Is(err, domain.ErrPromoAlreadyClicked) {
		t.Fatalf("expected ErrPromoAlreadyClicked, got %v", err)
	}

	results := submitter.all()
	last := results[len(results)-1]
	if !last.ClickLink {
		t.Fatalf("expected clickLink=true on promo report, got %+v", last)
	}
}

func newController(t *testing.T, quiz domain.Quiz, store app.ProgressStore, reporter *app.ResultReporter) *app.SessionController {
	t.Helper()
	c, err := app.NewSessionController(app.SessionConfig{
		Quiz:     quiz,
		UserID:   "42",
		Progress: store,
		Reporter: reporter,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

func mustAnswer(t *testing.T, c *app.SessionController, choice int) *domain.Outcome {
	t.Helper()
	if err := c.SelectAnswer(choice); err != nil {
		t.Fatalf("select %d: %v", choice, err)
	}
	outcome, err := c.Confirm()
	if err != nil {
		t.Fatalf("confirm %d: %v", choice, err)
	}
	return outcome
}

func quizWithQuestions(n int) domain.Quiz {
	quiz := domain.Quiz{QuizID: "quiz-1", QuizName: "Sample"}
	for i := 0; i < n; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			QuestionID:    i + 1,
			Question:      "Pick the first answer",
			Answer1:       "right",
			Answer2:       "wrong",
			Answer3:       "wrong",
			CorrectAnswer: 1,
		})
	}
	return quiz
}

// scenarioQuiz has correct answers 1,2,1,3,1,1.
func scenarioQuiz() domain.Quiz {
	correct := []int{1, 2, 1, 3, 1, 1}
	quiz := domain.Quiz{QuizID: "quiz-1", QuizName: "Prize Quiz"}
	for i, answer := range correct {
		quiz.Questions = append(quiz.Questions, domain.Question{
			QuestionID:    i + 1,
			Question:      "Question",
			Answer1:       "a",
			Answer2:       "b",
			Answer3:       "c",
			CorrectAnswer: answer,
		})
	}
	return quiz
}

type stubSubmitter struct {
	mu      sync.Mutex
	err     error
	results []domain.QuizResult
}

func (s *stubSubmitter) SubmitResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func (s *stubSubmitter) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubSubmitter) all() []domain.QuizResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.QuizResult(nil), s.results...)
}
