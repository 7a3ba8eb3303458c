package app

import (
	"context"
	"log"
	"sync"

	"tg-quiz-miniapp/internal/domain"
)

// ResultSubmitter posts one terminal quiz result to the backend.
type ResultSubmitter interface {
	SubmitResult(ctx context.Context, result domain.QuizResult) error
}

// ResultReporter submits terminal quiz outcomes. Results are correlated
// with telemetry through the campaign id but follow a weaker delivery
// contract on purpose: a failed report is logged and dropped, never
// retried. Telemetry gets the retry queue; results do not.
type ResultReporter struct {
	submitter ResultSubmitter
	wg        sync.WaitGroup
}

func NewResultReporter(submitter ResultSubmitter) *ResultReporter {
	return &ResultReporter{submitter: submitter}
}

// Submit posts the result synchronously and reports delivery faults to the
// caller (wrapped domain.ErrDeliveryFailed from the transport).
func (r *ResultReporter) Submit(ctx context.Context, result domain.QuizResult) error {
	return r.submitter.SubmitResult(ctx, result)
}

// ReportCompletion fires the automatic completion submission without
// blocking the session. Failure is logged only; the user experience
// proceeds unaffected.
func (r *ResultReporter) ReportCompletion(result domain.QuizResult) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.submitter.SubmitResult(context.Background(), result); err != nil {
			log.Printf("result: completion report for quiz %s failed: %v", result.QuizID, err)
		}
	}()
}

// Wait blocks until detached completion reports have settled. Only tests
// need it; teardown never awaits reports.
func (r *ResultReporter) Wait() { r.wg.Wait() }
