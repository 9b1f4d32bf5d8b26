package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medquiz-service/internal/domain"
)

// Client talks to the question API. Requests carry the identity of User when it is set.
type Client struct {
	baseURL string
	http    *http.Client
	user    *domain.User
}

func New(baseURL string, timeout time.Duration, user *domain.User) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		user:    user,
	}
}

// User returns the identity the client acts as, or nil when anonymous.
func (c *Client) User() *domain.User {
	return c.user
}

func (c *Client) ListQuestions(ctx context.Context, q QuestionQuery) ([]domain.Question, error) {
	var out []domain.Question
	err := c.do(ctx, http.MethodGet, "/api/questions?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) QuestionsByIDs(ctx context.Context, ids []int) ([]domain.Question, error) {
	var out []domain.Question
	err := c.do(ctx, http.MethodPost, "/api/questions/ids", map[string]any{"ids": ids}, &out)
	return out, err
}

func (c *Client) Question(ctx context.Context, id int) (domain.Question, error) {
	var out domain.Question
	err := c.do(ctx, http.MethodGet, questionPath(id), nil, &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, text string) ([]domain.Question, error) {
	var out []domain.Question
	err := c.do(ctx, http.MethodPost, "/api/questions/search", map[string]any{"searchString": text}, &out)
	return out, err
}

func (c *Client) ExamSets(ctx context.Context, semester int) ([]domain.ExamSetDescriptor, error) {
	var out []domain.ExamSetDescriptor
	err := c.do(ctx, http.MethodGet, "/api/sets?semester="+strconv.Itoa(semester), nil, &out)
	return out, err
}

func (c *Client) SubmitAnswer(ctx context.Context, a domain.Answer) (domain.AnswerReceipt, error) {
	var out domain.AnswerReceipt
	err := c.do(ctx, http.MethodPost, "/api/questions/answer", a, &out)
	return out, err
}

func (c *Client) Vote(ctx context.Context, questionID int, req domain.VoteRequest) (domain.Question, error) {
	var out domain.Question
	err := c.do(ctx, http.MethodPut, questionPath(questionID)+"/vote", req, &out)
	return out, err
}

func (c *Client) AddComment(ctx context.Context, questionID int, text string, private bool) (domain.Question, error) {
	var out domain.Question
	body := map[string]any{"comment": text, "isPrivate": private}
	err := c.do(ctx, http.MethodPut, questionPath(questionID)+"/comment", body, &out)
	return out, err
}

func (c *Client) EditComment(ctx context.Context, questionID, commentID int, text string, private bool) (domain.Question, error) {
	var out domain.Question
	body := map[string]any{"comment": text, "isPrivate": private}
	err := c.do(ctx, http.MethodPut, commentPath(questionID, commentID), body, &out)
	return out, err
}

func (c *Client) DeleteComment(ctx context.Context, questionID, commentID int) (domain.Question, error) {
	var out domain.Question
	err := c.do(ctx, http.MethodDelete, commentPath(questionID, commentID), nil, &out)
	return out, err
}

func (c *Client) Bookmark(ctx context.Context, questionID int) error {
	return c.do(ctx, http.MethodPost, questionPath(questionID)+"/bookmark", nil, nil)
}

func (c *Client) Unbookmark(ctx context.Context, questionID int) error {
	return c.do(ctx, http.MethodDelete, questionPath(questionID)+"/bookmark", nil, nil)
}

// Bookmarks returns the questions the user has bookmarked, most recent first.
func (c *Client) Bookmarks(ctx context.Context) ([]domain.Question, error) {
	var out []domain.Question
	err := c.do(ctx, http.MethodGet, "/api/me/bookmarks", nil, &out)
	return out, err
}

// Answers returns the user's answer history. A zero semester lists every semester.
func (c *Client) Answers(ctx context.Context, semester int) ([]domain.AnswerRecord, error) {
	path := "/api/me/answers"
	if semester > 0 {
		path += "?semester=" + strconv.Itoa(semester)
	}
	var out []domain.AnswerRecord
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) PatchQuestion(ctx context.Context, id int, patch domain.QuestionPatch) (domain.Question, error) {
	var out domain.Question
	err := c.do(ctx, http.MethodPatch, questionPath(id), patch, &out)
	return out, err
}

func (c *Client) Report(ctx context.Context, reportType string, data any) error {
	return c.do(ctx, http.MethodPost, "/api/questions/report", map[string]any{"type": reportType, "data": data}, nil)
}

func questionPath(id int) string {
	return "/api/questions/" + strconv.Itoa(id)
}

func commentPath(questionID, commentID int) string {
	return questionPath(questionID) + "/comment/" + strconv.Itoa(commentID)
}

// do sends a JSON request and decodes the response into out. Non-2xx responses are returned
// as *domain.APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.user != nil {
		req.Header.Set("X-User-ID", strconv.Itoa(c.user.ID))
		req.Header.Set("X-User-Role", c.user.Role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &domain.APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Type == "" {
			apiErr.Type = domain.ErrorTypeServer
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
