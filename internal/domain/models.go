package domain

import "time"

const (
	// MaxQuestions caps how many questions a single session presents,
	// regardless of how many the quiz carries.
	MaxQuestions = 6

	// WinnerThreshold is the minimum number of correct answers that
	// routes the user into the giveaway flow.
	WinnerThreshold = 4

	// QueueCap bounds the telemetry retry queue; the oldest entry is
	// evicted when a 51st event is queued.
	QueueCap = 50

	// ProgressTTL is how long persisted quiz progress stays resumable.
	ProgressTTL = 24 * time.Hour
)

// Question models a single multiple-choice question with three answers.
// CorrectAnswer is 1-based, matching the choice values clients submit.
type Question struct {
	QuestionID    int    `json:"questionID"`
	Question      string `json:"question"`
	Answer1       string `json:"answer1"`
	Answer2       string `json:"answer2"`
	Answer3       string `json:"answer3"`
	CorrectAnswer int    `json:"correctAnswer"`
}

// Answers returns the three answer texts in choice order.
func (q Question) Answers() [3]string {
	return [3]string{q.Answer1, q.Answer2, q.Answer3}
}

// Quiz is a named, ordered question list.
type Quiz struct {
	QuizID    string     `json:"quizID"`
	QuizName  string     `json:"quizName"`
	Questions []Question `json:"questions"`
}

// QuizState is the in-progress answer sheet for one session.
// While a quiz is running, len(Answers) == CurrentQuestionIndex.
type QuizState struct {
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	Answers              []int     `json:"answers"`
	StartTime            time.Time `json:"startTime"`
}

// StoredProgress is the single persisted progress slot.
// It is valid only for the same quiz and while younger than ProgressTTL.
type StoredProgress struct {
	QuizID    string    `json:"quizId"`
	State     QuizState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// AttributionContext is the marketing metadata resolved once at session
// start and shared, unmodified, by every telemetry event and result report.
type AttributionContext struct {
	CampaignID string `json:"campaignId,omitempty"`
	Source     string `json:"source,omitempty"`
	Medium     string `json:"medium,omitempty"`
	Term       string `json:"term,omitempty"`
	Content    string `json:"content,omitempty"`
	Referrer   string `json:"referrer,omitempty"`
}

// User is the identity the host environment hands to the mini-app.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// QuizResult is the terminal report submitted on completion. Submissions
// are additive log rows on the backend, never upserts: the same result may
// be posted again with ClickLink=true when the user engages the promo CTA.
type QuizResult struct {
	TgID              string `json:"tgID"`
	QuizID            string `json:"quizID"`
	QuestionsAnswered int    `json:"questionsAnswered"`
	CampaignID        string `json:"campaignId,omitempty"`
	ClickLink         bool   `json:"clickLink"`
}

// Outcome summarizes a finished session.
type Outcome struct {
	Correct  int   `json:"correct"`
	Total    int   `json:"total"`
	IsWinner bool  `json:"isWinner"`
	Answers  []int `json:"answers"`
}

// CampaignLink is the bot-facing deep link for a campaign. EncodedID is
// the base64 form the attribution resolver decodes against.
type CampaignLink struct {
	URL       string `json:"url"`
	EncodedID string `json:"encodedId"`
}
