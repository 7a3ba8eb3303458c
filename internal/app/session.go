package app

import (
	"context"
	"time"

	"tg-quiz-miniapp/internal/domain"
)

// ProgressStore persists the single in-progress answer slot.
// Implementations swallow storage faults (progress is best-effort, never a
// correctness requirement) and enforce the quiz-id match plus TTL rule on
// Load, purging the slot when it does not apply.
type ProgressStore interface {
	Save(quizID string, state domain.QuizState)
	Load(quizID string) (domain.QuizState, bool)
	Clear()
}

// QuizRepository loads quiz content (API-backed cache, Redis cache, etc).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionConfig carries the collaborators of one quiz session. Tracker and
// Reporter may be nil when telemetry or result reporting is not wired
// (tests, the drain CLI).
type SessionConfig struct {
	Quiz        domain.Quiz
	UserID      string
	Attribution domain.AttributionContext
	Progress    ProgressStore
	Tracker     *Tracker
	Reporter    *ResultReporter
	Clock       func() time.Time
}

// SessionController is the state machine driving one quiz run: answer
// selection, confirmation, progress persistence, scoring and completion
// hand-off. It is not safe for concurrent use; the gateway drives it from
// a single read loop.
type SessionController struct {
	quiz        domain.Quiz
	questions   []domain.Question
	state       domain.QuizState
	userID      string
	attribution domain.AttributionContext
	progress    ProgressStore
	tracker     *Tracker
	reporter    *ResultReporter
	now         func() time.Time

	pending       int
	transitioning bool
	completed     bool
	resumed       bool
	promoClicked  bool
}

// NewSessionController builds the controller, restoring persisted progress
// when the stored slot matches the quiz and is still fresh. A quiz that
// resolves to zero questions reports domain.ErrQuizNotReady: that is a
// loading condition, not a session.
func NewSessionController(cfg SessionConfig) (*SessionController, error) {
	questions := cfg.Quiz.Questions
	if len(questions) > domain.MaxQuestions {
		questions = questions[:domain.MaxQuestions]
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuizNotReady
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	c := &SessionController{
		quiz:        cfg.Quiz,
		questions:   questions,
		userID:      cfg.UserID,
		attribution: cfg.Attribution,
		progress:    cfg.Progress,
		tracker:     cfg.Tracker,
		reporter:    cfg.Reporter,
		now:         now,
	}
	if c.userID == "" {
		c.userID = AnonymousUserID
	}

	if state, ok := c.loadProgress(); ok {
		c.state = state
		c.resumed = true
	} else {
		c.state = domain.QuizState{StartTime: now()}
	}

	if c.tracker != nil {
		c.tracker.QuizStart(cfg.Quiz.QuizID, cfg.Quiz.QuizName)
	}
	return c, nil
}

func (c *SessionController) loadProgress() (domain.QuizState, bool) {
	if c.progress == nil {
		return domain.QuizState{}, false
	}
	state, ok := c.progress.Load(c.quiz.QuizID)
	if !ok {
		return domain.QuizState{}, false
	}
	// A stored index past the effective question list (the quiz shrank
	// since the save) would leave the controller out of range.
	if state.CurrentQuestionIndex >= len(c.questions) || len(state.Answers) != state.CurrentQuestionIndex {
		c.progress.Clear()
		return domain.QuizState{}, false
	}
	return state, true
}

// QuestionCount is the effective cap: min(len(questions), 6).
func (c *SessionController) QuestionCount() int { return len(c.questions) }

// CurrentIndex returns the zero-based index of the awaited question.
func (c *SessionController) CurrentIndex() int { return c.state.CurrentQuestionIndex }

// CurrentQuestion returns the awaited question, or false once completed.
func (c *SessionController) CurrentQuestion() (domain.Question, bool) {
	if c.completed {
		return domain.Question{}, false
	}
	return c.questions[c.state.CurrentQuestionIndex], true
}

// State exposes a copy of the answer sheet.
func (c *SessionController) State() domain.QuizState {
	state := c.state
	state.Answers = append([]int(nil), c.state.Answers...)
	return state
}

// Resumed reports whether the session restored persisted progress.
func (c *SessionController) Resumed() bool { return c.resumed }

// Completed reports whether the final answer has been confirmed.
func (c *SessionController) Completed() bool { return c.completed }

// Transitioning reports whether a confirmation is still advancing.
func (c *SessionController) Transitioning() bool { return c.transitioning }

// SelectAnswer records the pending choice for the current question. It may
// be called repeatedly to change the selection before Confirm.
func (c *SessionController) SelectAnswer(choice int) error {
	if c.completed {
		return domain.ErrSessionCompleted
	}
	if c.transitioning {
		return domain.ErrTransitionInFlight
	}
	if choice < 1 || choice > 3 {
		return domain.ErrInvalidChoice
	}
	c.pending = choice
	return nil
}

// Confirm appends the pending choice to the answer sheet. On a non-final
// question it persists progress, advances, and enters the transitioning
// state until EndTransition; on the final question it clears stored
// progress, completes the session, and returns the outcome (nil otherwise).
func (c *SessionController) Confirm() (*domain.Outcome, error) {
	if c.completed {
		return nil, domain.ErrSessionCompleted
	}
	if c.transitioning {
		return nil, domain.ErrTransitionInFlight
	}
	if c.pending == 0 {
		return nil, domain.ErrNoPendingSelection
	}

	idx := c.state.CurrentQuestionIndex
	question := c.questions[idx]
	answer := c.pending
	c.pending = 0
	c.state.Answers = append(c.state.Answers, answer)

	if c.tracker != nil {
		c.tracker.QuestionAnswered(c.quiz.QuizID, question.QuestionID, answer, answer == question.CorrectAnswer)
	}

	if idx == len(c.questions)-1 {
		c.completed = true
		if c.progress != nil {
			c.progress.Clear()
		}
		outcome := c.outcome()
		if c.tracker != nil {
			c.tracker.QuizComplete(c.quiz.QuizID, outcome.Correct, outcome.Total)
			c.tracker.QuizOutcome(c.quiz.QuizID, outcome)
		}
		if c.reporter != nil {
			c.reporter.ReportCompletion(c.buildResult(false))
		}
		return &outcome, nil
	}

	c.state.CurrentQuestionIndex++
	if c.progress != nil {
		c.progress.Save(c.quiz.QuizID, c.state)
	}
	c.transitioning = true
	return nil, nil
}

// EndTransition re-enables input once the caller has presented the next
// question.
func (c *SessionController) EndTransition() { c.transitioning = false }

// Outcome returns the scored result of a completed session.
func (c *SessionController) Outcome() (domain.Outcome, error) {
	if !c.completed {
		return domain.Outcome{}, domain.ErrSessionNotCompleted
	}
	return c.outcome(), nil
}

func (c *SessionController) outcome() domain.Outcome {
	correct := 0
	for i, answer := range c.state.Answers {
		if answer == c.questions[i].CorrectAnswer {
			correct++
		}
	}
	return domain.Outcome{
		Correct:  correct,
		Total:    len(c.questions),
		IsWinner: correct >= domain.WinnerThreshold,
		Answers:  append([]int(nil), c.state.Answers...),
	}
}

// PromoClick reports promotional engagement: one additional result row with
// clickLink=true. It is guarded so repeated taps report once; unlike the
// automatic completion report, a failure here surfaces to the caller so the
// user can be told and retry.
func (c *SessionController) PromoClick(ctx context.Context) error {
	if !c.completed {
		return domain.ErrSessionNotCompleted
	}
	if c.promoClicked {
		return domain.ErrPromoAlreadyClicked
	}
	if c.reporter != nil {
		if err := c.reporter.Submit(ctx, c.buildResult(true)); err != nil {
			return err
		}
	}
	c.promoClicked = true
	if c.tracker != nil {
		c.tracker.PromoLinkClicked(c.quiz.QuizID)
	}
	return nil
}

func (c *SessionController) buildResult(clickLink bool) domain.QuizResult {
	return domain.QuizResult{
		TgID:              c.userID,
		QuizID:            c.quiz.QuizID,
		QuestionsAnswered: len(c.state.Answers),
		CampaignID:        c.attribution.CampaignID,
		ClickLink:         clickLink,
	}
}
