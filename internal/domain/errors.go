package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizNotReady is reported when a quiz resolves to zero questions;
	// the caller should show a loading state, not start a session.
	ErrQuizNotReady = errors.New("quiz has no questions yet")
	// ErrNoPendingSelection is returned by Confirm when no answer is selected.
	ErrNoPendingSelection = errors.New("no answer selected")
	// ErrInvalidChoice is returned for selections outside 1..3.
	ErrInvalidChoice = errors.New("answer choice out of range")
	// ErrTransitionInFlight rejects input while the previous confirmation
	// is still advancing (double-tap guard).
	ErrTransitionInFlight = errors.New("question transition in flight")
	// ErrSessionCompleted rejects any transition after the final answer.
	ErrSessionCompleted = errors.New("quiz session already completed")
	// ErrSessionNotCompleted rejects outcome queries and promo clicks
	// before the final answer.
	ErrSessionNotCompleted = errors.New("quiz session not completed")
	// ErrPromoAlreadyClicked rejects a second promo engagement report.
	ErrPromoAlreadyClicked = errors.New("promo click already reported")
	// ErrDeliveryFailed wraps network/remote faults on telemetry or
	// result submission.
	ErrDeliveryFailed = errors.New("delivery failed")
)
