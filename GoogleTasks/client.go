package GoogleTasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://tasks.googleapis.com/tasks/v1"

// maxResults matches what Google caps a single page at for our usage; the
// aggregator reads exactly one page per list.
const maxResults = 100

// TaskList represents one of the user's Google Tasks lists
type TaskList struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Task represents a task item as returned by the Google Tasks API. Status is
// the string "completed" when done and Completed carries the RFC 3339
// completion timestamp.
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status"`
	Due       string `json:"due,omitempty"`
	Completed string `json:"completed,omitempty"`
}

type taskListResponse struct {
	Items []TaskList `json:"items"`
}

type taskResponse struct {
	Items []Task `json:"items"`
}

// IsCompleted reports whether the external service marks this task done.
func (t Task) IsCompleted() bool {
	return t.Status == "completed" && t.Completed != ""
}

// CompletedAt parses the external completion timestamp. Zero time when the
// task is not completed or the timestamp does not parse.
func (t Task) CompletedAt() time.Time {
	if t.Completed == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, t.Completed)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// TokenResolver yields a live bearer token for a planner/user pair. The
// token manager in token.go is the production implementation.
type TokenResolver interface {
	Resolve(ctx context.Context, plannerEmail, userEmail string) (string, error)
}

// Client calls the Google Tasks REST API on behalf of a connected user.
// Tokens are resolved per call.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenResolver
}

func NewClient(tokens TokenResolver) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Tokens:     tokens,
	}
}

// ListTaskLists returns the user's task lists.
func (c *Client) ListTaskLists(ctx context.Context, plannerEmail, userEmail string) ([]TaskList, error) {
	token, err := c.Tokens.Resolve(ctx, plannerEmail, userEmail)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/users/@me/lists?maxResults=%d", c.BaseURL, maxResults)
	var result taskListResponse
	if err := c.getJSON(ctx, url, token, &result); err != nil {
		return nil, fmt.Errorf("failed to list task lists for %s: %w", userEmail, err)
	}
	return result.Items, nil
}

// ListTasks returns all tasks in a list, including completed ones.
func (c *Client) ListTasks(ctx context.Context, plannerEmail, userEmail, listID string) ([]Task, error) {
	token, err := c.Tokens.Resolve(ctx, plannerEmail, userEmail)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/lists/%s/tasks?maxResults=%d&showCompleted=true", c.BaseURL, listID, maxResults)
	var result taskResponse
	if err := c.getJSON(ctx, url, token, &result); err != nil {
		return nil, fmt.Errorf("failed to list tasks in %s for %s: %w", listID, userEmail, err)
	}
	return result.Items, nil
}

// CreateTaskList creates a new task list in the user's account.
func (c *Client) CreateTaskList(ctx context.Context, plannerEmail, userEmail, title string) (*TaskList, error) {
	token, err := c.Tokens.Resolve(ctx, plannerEmail, userEmail)
	if err != nil {
		return nil, err
	}

	url := c.BaseURL + "/users/@me/lists"
	var created TaskList
	if err := c.postJSON(ctx, url, token, TaskList{Title: title}, &created); err != nil {
		return nil, fmt.Errorf("failed to create task list for %s: %w", userEmail, err)
	}
	return &created, nil
}

// InsertTask adds a task to a list and returns it with its Google-assigned ID.
func (c *Client) InsertTask(ctx context.Context, plannerEmail, userEmail, listID string, task Task) (*Task, error) {
	token, err := c.Tokens.Resolve(ctx, plannerEmail, userEmail)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/lists/%s/tasks", c.BaseURL, listID)
	var created Task
	if err := c.postJSON(ctx, url, token, task, &created); err != nil {
		return nil, fmt.Errorf("failed to insert task into %s for %s: %w", listID, userEmail, err)
	}
	return &created, nil
}

func (c *Client) getJSON(ctx context.Context, url, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, url, token string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("google tasks API returned %d: %s", resp.StatusCode, string(detail))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
