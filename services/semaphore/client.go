// Package semaphore talks to the external job execution service: template
// creation, task start, and status polling, authenticated with a static
// bearer token injected at construction.
package semaphore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 2048

// Config carries the connection settings for the job execution service.
// Both values come from process configuration, never from request payloads.
type Config struct {
	BaseURL string
	Token   string

	// HTTPClient overrides the default 30s-timeout client, mainly for tests.
	HTTPClient *http.Client
}

// Client is a thin synchronous wrapper over the service's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient validates the configuration and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("semaphore: base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    httpClient,
	}, nil
}

// TemplateSpec is the payload for template creation, mirroring the service's
// own field names.
type TemplateSpec struct {
	ProjectID     int    `json:"project_id"`
	InventoryID   int    `json:"inventory_id"`
	RepositoryID  int    `json:"repository_id"`
	EnvironmentID int    `json:"environment_id"`
	Name          string `json:"name"`
	Playbook      string `json:"playbook"`
	App           string `json:"app"`
}

// Template is the service's representation of a created template.
type Template struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Playbook string `json:"playbook"`
}

// Task is the service's representation of a job run.
type Task struct {
	ID         int    `json:"id"`
	TemplateID int    `json:"template_id"`
	Status     string `json:"status"`
	Created    string `json:"created,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	Message    string `json:"message,omitempty"`
}

// CreateEnvironment forwards an environment spec to the service and returns
// the decoded response, if any.
func (c *Client) CreateEnvironment(ctx context.Context, projectID int, spec map[string]any) (map[string]any, error) {
	var out map[string]any
	path := fmt.Sprintf("/api/project/%d/environment", projectID)
	if err := c.do(ctx, http.MethodPost, path, spec, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTemplate registers a template pointing at a stored playbook.
func (c *Client) CreateTemplate(ctx context.Context, projectID int, spec TemplateSpec) (Template, error) {
	var tpl Template
	path := fmt.Sprintf("/api/project/%d/templates", projectID)
	if err := c.do(ctx, http.MethodPost, path, spec, &tpl); err != nil {
		return Template{}, err
	}
	if tpl.ID == 0 {
		return Template{}, &ProtocolError{Op: "create template", Detail: "response missing id"}
	}
	return tpl, nil
}

// StartTask launches a run of the given template.
func (c *Client) StartTask(ctx context.Context, projectID, templateID int) (Task, error) {
	var task Task
	path := fmt.Sprintf("/api/project/%d/tasks", projectID)
	body := map[string]any{"template_id": templateID}
	if err := c.do(ctx, http.MethodPost, path, body, &task); err != nil {
		return Task{}, err
	}
	if task.ID == 0 {
		return Task{}, &ProtocolError{Op: "start task", Detail: "response missing id"}
	}
	return task, nil
}

// TaskStatus fetches the current state of a task. Whatever status string the
// service reports is passed through; a non-terminal status is not an error.
func (c *Client) TaskStatus(ctx context.Context, projectID, taskID int) (Task, error) {
	var task Task
	path := fmt.Sprintf("/api/project/%d/tasks/%d", projectID, taskID)
	if err := c.do(ctx, http.MethodGet, path, nil, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("semaphore: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("semaphore: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ProtocolError{Op: method + " " + path, Detail: "undecodable response body"}
	}
	return nil
}
