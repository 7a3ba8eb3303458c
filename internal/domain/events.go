package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Telemetry action tags. Each tag has exactly one details payload shape.
const (
	ActionSessionStart     = "session_start"
	ActionQuizStart        = "quiz_start"
	ActionQuestionAnswered = "quiz_question_answered"
	ActionQuizComplete     = "quiz_complete"
	ActionQuizWinner       = "quiz_winner"
	ActionQuizNotWinner    = "quiz_not_winner"
	ActionPageView         = "page_view"
	ActionButtonClick      = "button_click"
	ActionPromoLinkClicked = "promo_link_clicked"
)

// TelemetryEvent is one analytics record. Events are append-only: built
// once, never mutated, delivered at least once (retries may duplicate).
type TelemetryEvent struct {
	UserID     string    `json:"userId"`
	CampaignID string    `json:"campaignId,omitempty"`
	Action     string    `json:"action"`
	Details    any       `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"sessionId"`
	Source     string    `json:"source,omitempty"`
	Medium     string    `json:"medium,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
}

// Matches reports whether two events carry the same serialized content.
// Retry queues use it to locate a delivered entry in the live queue, whose
// positions may have shifted under concurrent enqueues and evictions.
func (e TelemetryEvent) Matches(other TelemetryEvent) bool {
	a, err := json.Marshal(e)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// SessionStartDetails describes the host environment at bootstrap.
type SessionStartDetails struct {
	UserAgent string `json:"userAgent,omitempty"`
	Language  string `json:"language,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// QuizStartDetails accompanies quiz_start.
type QuizStartDetails struct {
	QuizID   string `json:"quizId"`
	QuizName string `json:"quizName,omitempty"`
}

// QuestionAnsweredDetails accompanies quiz_question_answered.
type QuestionAnsweredDetails struct {
	QuizID     string `json:"quizId"`
	QuestionID int    `json:"questionId"`
	Answer     int    `json:"answer"`
	IsCorrect  bool   `json:"isCorrect"`
}

// QuizCompleteDetails accompanies quiz_complete.
type QuizCompleteDetails struct {
	QuizID     string `json:"quizId"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// OutcomeDetails accompanies quiz_winner and quiz_not_winner.
type OutcomeDetails struct {
	QuizID string `json:"quizId"`
	Score  int    `json:"score"`
	Total  int    `json:"total"`
}

// PageViewDetails accompanies page_view.
type PageViewDetails struct {
	Page string `json:"page"`
}

// ButtonClickDetails accompanies button_click.
type ButtonClickDetails struct {
	ButtonName string `json:"buttonName"`
	Page       string `json:"page,omitempty"`
}

// PromoLinkDetails accompanies promo_link_clicked.
type PromoLinkDetails struct {
	QuizID     string `json:"quizId"`
	CampaignID string `json:"campaignId,omitempty"`
}
