package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tg-quiz-miniapp/internal/domain"
)

func TestLoadQuiz(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/quizzes/quiz-1":
			_ = json.NewEncoder(w).Encode(domain.Quiz{
				QuizID:   "quiz-1",
				QuizName: "Sample",
				Questions: []domain.Question{
					{QuestionID: 1, Question: "2+2?", Answer1: "3", Answer2: "4", Answer3: "5", CorrectAnswer: 2},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	quiz, err := client.LoadQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if quiz.QuizName != "Sample" || len(quiz.Questions) != 1 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}

	if _, err := client.LoadQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestSubmitResultChecksAcknowledgement(t *testing.T) {
	var got domain.QuizResult
	acked := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/result" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": acked})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result := domain.QuizResult{TgID: "42", QuizID: "quiz-1", QuestionsAnswered: 6, CampaignID: "camp", ClickLink: true}
	if err := client.SubmitResult(context.Background(), result); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got != result {
		t.Fatalf("backend saw %+v, want %+v", got, result)
	}

	acked = false
	if err := client.SubmitResult(context.Background(), result); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected delivery failure on success=false, got %v", err)
	}
}

func TestDeliverEventFailsOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.DeliverEvent(context.Background(), domain.TelemetryEvent{Action: domain.ActionPageView})
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestCampaignLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/campaign-link" || r.URL.Query().Get("campaign_id") != "camp-1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.CampaignLink{
			URL:       "t.me/quizbot/app?startapp=Y2FtcC0x",
			EncodedID: "Y2FtcC0x",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	link, err := client.CampaignLink(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("campaign link: %v", err)
	}
	if link.EncodedID != "Y2FtcC0x" {
		t.Fatalf("unexpected link %+v", link)
	}
}
