package ember

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// ExecuteRequest is the wire request submitted to a worker's execute
// endpoint. The tracker callback fields let the worker report status
// changes back on its own; the credential doubles as the worker's identity
// when it does.
type ExecuteRequest struct {
	Prompt                    string `json:"prompt"`
	Subject                   string `json:"subject"`
	TaskID                    *int64 `json:"taskId,omitempty"`
	WorkingDir                string `json:"workingDir,omitempty"`
	TurnBudget                int    `json:"turnBudget,omitempty"`
	TrackerCallbackAddress    string `json:"trackerCallbackAddress,omitempty"`
	TrackerCallbackCredential string `json:"trackerCallbackCredential,omitempty"`
	SenderName                string `json:"senderName,omitempty"`
	TargetBranch              string `json:"targetBranch,omitempty"`
}

// ExecuteResponse is a successful submission.
type ExecuteResponse struct {
	SessionID string `json:"sessionId"`
}

// ActiveTasksResponse reports a worker's current and orphaned sessions.
type ActiveTasksResponse struct {
	Active   *models.ActiveTask `json:"active,omitempty"`
	Orphaned []string           `json:"orphaned,omitempty"`
}

// Client is the typed HTTP client for one resolved worker address.
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a worker client for the given base URL and credential.
func NewClient(baseURL, credential string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		credential: credential,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health probes the worker's unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned %d", resp.StatusCode)
	}

	var status models.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}
	return &status, nil
}

// Execute submits a job. A worker already running a task answers 409,
// surfaced as *BusyError naming the running session.
func (c *Client) Execute(ctx context.Context, execReq ExecuteRequest) (*ExecuteResponse, error) {
	data, err := json.Marshal(execReq)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var busy struct {
			SessionID string `json:"sessionId"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&busy)
		return nil, &BusyError{SessionID: busy.SessionID}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("execute returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out ExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding execute response: %w", err)
	}
	return &out, nil
}

// ActiveTasks queries the worker's current active task and any orphaned
// sessions left over from a previous abnormal exit.
func (c *Client) ActiveTasks(ctx context.Context) (*ActiveTasksResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/active", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("active tasks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("active tasks returned %d", resp.StatusCode)
	}

	var out ActiveTasksResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding active tasks response: %w", err)
	}
	return &out, nil
}
