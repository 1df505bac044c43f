// Package generation is the HTTP client of the external music generation API.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/core/telegram/netutil"
)

const (
	component = "generation"

	// DefaultTimeout bounds a single generate call.
	DefaultTimeout = 120 * time.Second

	maxBodyBytes = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	// StatusRetries is the number of retries for status lookups on transient
	// network errors. Generate is never retried.
	StatusRetries int
}

// Client talks to the generation API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	statusHTTP *http.Client
}

// NewClient builds a Client. A nil base transport uses http.DefaultTransport.
func NewClient(cfg Config, base http.RoundTripper) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("generation: invalid base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		token:      cfg.ServiceToken,
		httpClient: &http.Client{Timeout: timeout, Transport: base},
		statusHTTP: &http.Client{
			Timeout: timeout,
			Transport: &netutil.RetryTransport{
				Base:       base,
				MaxRetries: cfg.StatusRetries,
				Backoff:    500 * time.Millisecond,
			},
		},
	}, nil
}

// Generate submits a job and returns its task id.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if req.Title == "" {
		req.Title = DefaultTitle
	}
	if !req.CustomMode {
		req.Style = ""
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/music/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warn(ctx, component, "generate",
			slog.String("status", "fail"),
			slog.Duration("duration", time.Since(start)),
			logger.Err(err),
		)
		return "", fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		logger.Error(ctx, component, "generate",
			slog.String("status", "rejected"),
			slog.Int("http_code", resp.StatusCode),
			slog.String("payload", logger.SanitizeLimit(string(body), 1024)),
			slog.String("details", logger.SanitizeLimit(string(respBody), 1024)),
		)
		return "", fmt.Errorf("%w: %s", ErrValidation, logger.SanitizeLimit(string(respBody), 256))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		logger.Warn(ctx, component, "generate",
			slog.String("status", "fail"),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)
		return "", &HTTPError{Op: "generate", StatusCode: resp.StatusCode, Body: logger.SanitizeLimit(string(respBody), 256)}
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	taskID := strings.TrimSpace(out.TaskID)
	if taskID == "" {
		return "", errors.New("generate: response has no taskId")
	}
	logger.Info(ctx, component, "generate",
		slog.String("status", "ok"),
		slog.String("task_id", taskID),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return taskID, nil
}

// Status fetches the state of a task.
func (c *Client) Status(ctx context.Context, taskID string) (Status, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return Status{}, errors.New("status: empty task id")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/music/status/"+url.PathEscape(taskID), nil)
	if err != nil {
		return Status{}, fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.statusHTTP.Do(httpReq)
	if err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Status{}, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug(ctx, component, "status",
			slog.String("status", "fail"),
			slog.String("task_id", taskID),
			slog.Int("http_code", resp.StatusCode),
		)
		return Status{}, &HTTPError{Op: "status", StatusCode: resp.StatusCode, Body: logger.SanitizeLimit(string(respBody), 256)}
	}

	var env StatusEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return Status{}, fmt.Errorf("decode status response: %w", err)
	}
	return env.toStatus(taskID), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("X-Bot-Token", c.token)
	}
	if rid := logger.RIDFrom(req.Context()); rid != "" {
		req.Header.Set("X-Correlation-ID", rid)
	}
}
