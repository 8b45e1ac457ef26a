// Package client talks to the contest server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/warren/pkg/maze"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: server returned %d: %s", e.Endpoint, e.Status, e.Message)
}

// Client is a contest API client for one team.
type Client struct {
	baseURL string
	teamID  string
	http    *http.Client

	mu      sync.Mutex
	queries int
}

// New returns a client. A zero timeout means 30 seconds.
func New(baseURL, teamID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		teamID:  teamID,
		http:    &http.Client{Timeout: timeout},
	}
}

// Select starts a problem.
func (c *Client) Select(ctx context.Context, problem string) error {
	var resp maze.SelectResponse
	if err := c.post(ctx, "/select", maze.SelectRequest{ID: c.teamID, ProblemName: problem}, &resp); err != nil {
		return err
	}
	if resp.ProblemName != problem {
		return fmt.Errorf("server selected problem %q, requested %q", resp.ProblemName, problem)
	}
	c.mu.Lock()
	c.queries = 0
	c.mu.Unlock()
	return nil
}

// Explore submits a batch of plans and returns one label sequence per plan.
func (c *Client) Explore(ctx context.Context, plans []maze.Plan) ([][]maze.Label, error) {
	var resp maze.ExploreResponse
	if err := c.post(ctx, "/explore", maze.ExploreRequest{ID: c.teamID, Plans: plans}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(plans) {
		return nil, fmt.Errorf("explore returned %d results for %d plans", len(resp.Results), len(plans))
	}
	c.mu.Lock()
	c.queries = resp.QueryCount
	c.mu.Unlock()
	return resp.Results, nil
}

// Queries returns the query count the server last reported.
func (c *Client) Queries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries
}

// Guess submits the final map.
func (c *Client) Guess(ctx context.Context, m *maze.Map) (bool, error) {
	var resp maze.GuessResponse
	if err := c.post(ctx, "/guess", maze.GuessRequest{ID: c.teamID, Map: *m}, &resp); err != nil {
		return false, err
	}
	return resp.Correct, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e maze.ErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
