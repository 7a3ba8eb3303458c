// Package api is the client for the quiz backend: quiz content, result
// rows, and the analytics ingestion endpoint. The backend persists into a
// spreadsheet; from here it is just HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tg-quiz-miniapp/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client talks to the quiz backend. It implements the quiz loader, the
// event deliverer, and the result submitter consumed by the app layer.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// GetQuizzes lists the available quizzes.
func (c *Client) GetQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	if err := c.getJSON(ctx, "/api/quizzes", &quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

// LoadQuiz fetches one quiz; it satisfies the quiz cache's loader.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.getJSON(ctx, "/api/quizzes/"+url.PathEscape(quizID), &quiz)
	if isStatus(err, http.StatusNotFound) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// SubmitResult appends one result row. The backend answers {success};
// anything else is a delivery failure.
func (c *Client) SubmitResult(ctx context.Context, result domain.QuizResult) error {
	return c.postExpectSuccess(ctx, "/api/result", result)
}

// DeliverEvent posts one telemetry event.
func (c *Client) DeliverEvent(ctx context.Context, event domain.TelemetryEvent) error {
	return c.postExpectSuccess(ctx, "/api/analytics/track", event)
}

// CampaignAnalytics fetches the raw event log for a campaign. It serves
// operator tooling, not the session core.
func (c *Client) CampaignAnalytics(ctx context.Context, campaignID string) ([]domain.TelemetryEvent, error) {
	var payload struct {
		Analytics []domain.TelemetryEvent `json:"analytics"`
	}
	if err := c.getJSON(ctx, "/api/analytics/campaign/"+url.PathEscape(campaignID), &payload); err != nil {
		return nil, err
	}
	return payload.Analytics, nil
}

// CampaignLink fetches the bot deep link for a campaign. EncodedID is the
// base64 form the attribution resolver decodes against.
func (c *Client) CampaignLink(ctx context.Context, campaignID string) (domain.CampaignLink, error) {
	var link domain.CampaignLink
	path := "/api/campaign-link?campaign_id=" + url.QueryEscape(campaignID)
	if err := c.getJSON(ctx, path, &link); err != nil {
		return domain.CampaignLink{}, err
	}
	return link, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", domain.ErrDeliveryFailed, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{path: path, status: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postExpectSuccess(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", domain.ErrDeliveryFailed, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: POST %s: status %d", domain.ErrDeliveryFailed, path, resp.StatusCode)
	}

	var ack struct {
		Success bool `json:"success"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", domain.ErrDeliveryFailed, path, err)
	}
	if err := json.Unmarshal(raw, &ack); err != nil || !ack.Success {
		return fmt.Errorf("%w: POST %s: backend did not acknowledge", domain.ErrDeliveryFailed, path)
	}
	return nil
}

// statusError keeps the status code inspectable for 404 mapping.
type statusError struct {
	path   string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.path, e.status)
}

func (e *statusError) Unwrap() error { return domain.ErrDeliveryFailed }

func isStatus(err error, status int) bool {
	se, ok := err.(*statusError)
	return ok && se.status == status
}
