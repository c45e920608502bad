package client

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

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/service/match"
	"github.com/qbeka/matchmaking-nat/internal/validate"
)

// DefaultBaseURL is used when New receives an empty base.
const DefaultBaseURL = "http://localhost:4100"

// Client provides typed access to the matchd API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status     int
	Message    string
	Violations []validate.Violation
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Error      string               `json:"error"`
		Violations []validate.Violation `json:"violations"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Error)
	apiErr.Violations = payload.Violations
	return apiErr
}

// TokenResponse is the token exchange payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeKey trades an API key for a bearer token and keeps it on the client.
func (c *Client) ExchangeKey(ctx context.Context, operator, apiKey string) (TokenResponse, error) {
	var resp TokenResponse
	payload := map[string]string{"operator": operator, "api_key": apiKey}
	if err := c.do(ctx, http.MethodPost, "/auth/token", payload, &resp); err != nil {
		return TokenResponse{}, err
	}
	c.token = resp.AccessToken
	return resp, nil
}

// UpsertIndividuals stores individuals.
func (c *Client) UpsertIndividuals(ctx context.Context, individuals []domain.Individual) error {
	return c.do(ctx, http.MethodPost, "/individuals", individuals, nil)
}

// UpsertTasks stores tasks.
func (c *Client) UpsertTasks(ctx context.Context, tasks []domain.Task) error {
	return c.do(ctx, http.MethodPost, "/tasks", tasks, nil)
}

// CreateRun registers a run.
func (c *Client) CreateRun(ctx context.Context, input match.CreateRunInput) (*domain.Run, error) {
	var run domain.Run
	if err := c.do(ctx, http.MethodPost, "/runs", input, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun fetches a run with its stage outputs.
func (c *Client) GetRun(ctx context.Context, runID string) (*match.RunView, error) {
	var view match.RunView
	if err := c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// RunStage triggers one stage.
func (c *Client) RunStage(ctx context.Context, runID string, stage int) (*match.RunView, error) {
	var view match.RunView
	path := fmt.Sprintf("/runs/%s/stages/%d", url.PathEscape(runID), stage)
	if err := c.do(ctx, http.MethodPost, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Execute runs every stage.
func (c *Client) Execute(ctx context.Context, runID string) (*match.RunView, error) {
	var view match.RunView
	if err := c.do(ctx, http.MethodPost, "/runs/"+url.PathEscape(runID)+"/execute", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}
