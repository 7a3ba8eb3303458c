package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tg-quiz-miniapp/internal/app"
	"tg-quiz-miniapp/internal/attribution"
	"tg-quiz-miniapp/internal/domain"
	"github.com/gorilla/websocket"
)

// Deps wires the gateway to the session core. NewProgressStore scopes the
// single progress slot to the connecting user.
type Deps struct {
	Quizzes          app.QuizRepository
	Deliverer        app.EventDeliverer
	Submitter        app.ResultSubmitter
	Queue            app.EventQueue
	NewProgressStore func(userID string) app.ProgressStore
	// RetryDelay is how long after session load the one-shot retry drain
	// of the telemetry queue fires.
	RetryDelay time.Duration
}

// WSHandler runs one quiz session per websocket connection: attribution
// resolve, telemetry bootstrap, and the select/confirm loop.
type WSHandler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func NewWSHandler(deps Deps) *WSHandler {
	return &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Choice int `json:"choice"`
}

type questionPayload struct {
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Question string    `json:"question"`
	Answers  [3]string `json:"answers"`
	Resumed  bool      `json:"resumed"`
}

type completedPayload struct {
	Correct  int   `json:"correct"`
	Total    int   `json:"total"`
	IsWinner bool  `json:"isWinner"`
	Answers  []int `json:"answers"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives the session until the client
// disconnects or the quiz completes and the client leaves.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	quizID := query.Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	userID := query.Get("userId")
	if userID == "" {
		userID = app.AnonymousUserID
	}

	attr := attribution.Resolve(attribution.Launch{
		StartParam: query.Get("startParam"),
		Query:      query,
		Referrer:   r.Referer(),
	})

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	tracker := app.NewTracker(h.deps.Deliverer, h.deps.Queue, userID, attr)
	defer tracker.Close()
	tracker.SessionStart(domain.SessionStartDetails{
		UserAgent: r.UserAgent(),
		Language:  r.Header.Get("Accept-Language"),
	})
	tracker.PageView("quiz")
	if h.deps.RetryDelay > 0 {
		tracker.ScheduleRetry(h.deps.RetryDelay)
	}

	quiz, err := h.deps.Quizzes.GetQuiz(r.Context(), quizID)
	if err != nil {
		sendError(conn, "quiz unavailable")
		return
	}

	var progress app.ProgressStore
	if h.deps.NewProgressStore != nil {
		progress = h.deps.NewProgressStore(userID)
	}

	controller, err := app.NewSessionController(app.SessionConfig{
		Quiz:        quiz,
		UserID:      userID,
		Attribution: attr,
		Progress:    progress,
		Tracker:     tracker,
		Reporter:    app.NewResultReporter(h.deps.Submitter),
	})
	if errors.Is(err, domain.ErrQuizNotReady) {
		send(conn, "not_ready", struct{}{})
		return
	}
	if err != nil {
		sendError(conn, err.Error())
		return
	}

	h.sendQuestion(conn, controller, controller.Resumed())

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(conn, "invalid select payload")
				continue
			}
			if err := controller.SelectAnswer(payload.Choice); err != nil {
				sendError(conn, err.Error())
				continue
			}
			send(conn, "selected", selectPayload{Choice: payload.Choice})
		case "confirm":
			outcome, err := controller.Confirm()
			if err != nil {
				sendError(conn, err.Error())
				continue
			}
			if outcome != nil {
				send(conn, "completed", completedPayload{
					Correct:  outcome.Correct,
					Total:    outcome.Total,
					IsWinner: outcome.IsWinner,
					Answers:  outcome.Answers,
				})
				continue
			}
			h.sendQuestion(conn, controller, false)
			controller.EndTransition()
		case "promo_click":
			if err := controller.PromoClick(r.Context()); err != nil {
				sendError(conn, promoErrorMessage(err))
				continue
			}
			send(conn, "promo_ack", struct{}{})
		default:
			sendError(conn, "unsupported message type")
		}
	}
}

func (h *WSHandler) sendQuestion(conn *websocket.Conn, controller *app.SessionController, resumed bool) {
	question, ok := controller.CurrentQuestion()
	if !ok {
		return
	}
	send(conn, "question", questionPayload{
		Index:    controller.CurrentIndex(),
		Total:    controller.QuestionCount(),
		Question: question.Question,
		Answers:  question.Answers(),
		Resumed:  resumed,
	})
}

func promoErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrPromoAlreadyClicked), errors.Is(err, domain.ErrSessionNotCompleted):
		return err.Error()
	default:
		// Result submission faults are the one delivery error the user
		// is told about, so they can retry the promo action.
		return "could not record your entry, please try again"
	}
}

func send[T any](conn *websocket.Conn, msgType string, payload T) {
	if err := conn.WriteJSON(outboundMessage[T]{Type: msgType, Payload: payload}); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

func sendError(conn *websocket.Conn, message string) {
	send(conn, "error", errorPayload{Message: message})
}
