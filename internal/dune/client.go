package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"lidoDigest/internal/model"
)

const DefaultBaseURL = "https://api.dune.com/api/v1"

// Execution states reported by the Dune API.
const (
	StatePending   = "QUERY_STATE_PENDING"
	StateExecuting = "QUERY_STATE_EXECUTING"
	StateCompleted = "QUERY_STATE_COMPLETED"
	StateFailed    = "QUERY_STATE_FAILED"
	StateCancelled = "QUERY_STATE_CANCELLED"
	StateExpired   = "QUERY_STATE_EXPIRED"
)

// APIError is a non-2xx response from the Dune API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dune api status %d: %s", e.StatusCode, e.Message)
}

// ClientConfig holds Dune client settings.
type ClientConfig struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	RequestsPerS float64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client talks to the Dune query execution API.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limit := rate.Inf
	if cfg.RequestsPerS > 0 {
		limit = rate.Limit(cfg.RequestsPerS)
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Execution is the state of one query execution.
type Execution struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int    `json:"query_id"`
	State       string `json:"state"`
}

// Finished reports whether the execution reached a terminal state.
func (e Execution) Finished() bool {
	switch e.State {
	case StateCompleted, StateFailed, StateCancelled, StateExpired:
		return true
	default:
		return false
	}
}

type executeRequest struct {
	QueryParameters map[string]string `json:"query_parameters,omitempty"`
}

type resultsResponse struct {
	Execution
	Result struct {
		Rows     []model.Row `json:"rows"`
		Metadata struct {
			ColumnNames []string `json:"column_names"`
		} `json:"metadata"`
	} `json:"result"`
}

// Execute starts a query execution and returns its id.
func (c *Client) Execute(ctx context.Context, queryID int, params map[string]string) (string, error) {
	body, err := json.Marshal(executeRequest{QueryParameters: params})
	if err != nil {
		return "", fmt.Errorf("marshal execute request: %w", err)
	}

	var exec Execution
	path := fmt.Sprintf("/query/%d/execute", queryID)
	if err := c.do(ctx, http.MethodPost, path, body, &exec, isRetryableSubmit); err != nil {
		return "", fmt.Errorf("execute query %d: %w", queryID, err)
	}
	if exec.ExecutionID == "" {
		return "", fmt.Errorf("execute query %d: empty execution id", queryID)
	}
	return exec.ExecutionID, nil
}

// Status returns the current state of an execution.
func (c *Client) Status(ctx context.Context, executionID string) (Execution, error) {
	var exec Execution
	if err := c.do(ctx, http.MethodGet, "/execution/"+executionID+"/status", nil, &exec, isRetryable); err != nil {
		return Execution{}, fmt.Errorf("execution status %s: %w", executionID, err)
	}
	return exec, nil
}

// Results returns the rows of a completed execution.
func (c *Client) Results(ctx context.Context, executionID string) (model.Dataset, error) {
	var resp resultsResponse
	if err := c.do(ctx, http.MethodGet, "/execution/"+executionID+"/results", nil, &resp, isRetryable); err != nil {
		return nil, fmt.Errorf("execution results %s: %w", executionID, err)
	}
	if resp.State != "" && resp.State != StateCompleted {
		return nil, fmt.Errorf("execution results %s: state %s", executionID, resp.State)
	}
	if resp.Result.Rows == nil {
		return model.Dataset{}, nil
	}
	return model.Dataset(resp.Result.Rows), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}, retryable func(error) bool) error {
	return withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, retryable, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, path, body, out)
		if err != nil {
			c.logger.Warn("dune request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		}
		return err
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Dune-API-Key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
