package meetingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/metrics"
)

const (
	defaultTimeout = 15 * time.Second
	// maxErrorBody caps how much of a failed response is read
	maxErrorBody = 4096
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
}

// Config holds meeting API client configuration
type Config struct {
	BaseURL string
	// Timeout bounds each request (default 15s)
	Timeout time.Duration
	// DurationMinutes is sent with start requests when positive
	DurationMinutes int
}

// Client implements repositories.MeetingAPI over the backend's REST endpoints
type Client struct {
	baseURL         string
	httpClient      *http.Client
	durationMinutes int
	logger          *zap.Logger
}

var _ repositories.MeetingAPI = (*Client)(nil)

// NewClient creates a meeting API client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(config.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", config.BaseURL)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:         base,
		httpClient:      &http.Client{Timeout: timeout},
		durationMinutes: config.DurationMinutes,
		logger:          logger,
	}, nil
}

type startRequest struct {
	DurationMinutes int `json:"durationMinutes,omitempty"`
}

// Get fetches the meeting descriptor. A 404 maps to repositories.ErrMeetingNotFound.
func (c *Client) Get(ctx context.Context, code string) (*entities.Meeting, error) {
	var meeting entities.Meeting
	err := c.do(ctx, "get", http.MethodGet, c.meetingPath(code, ""), nil, &meeting)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", repositories.ErrMeetingNotFound, code)
		}
		return nil, err
	}
	if meeting.Code == "" {
		meeting.Code = code
	}
	return &meeting, nil
}

// Start starts the meeting
func (c *Client) Start(ctx context.Context, code string) (*entities.StartResult, error) {
	var body any
	if c.durationMinutes > 0 {
		body = startRequest{DurationMinutes: c.durationMinutes}
	}

	var result entities.StartResult
	if err := c.do(ctx, "start", http.MethodPost, c.meetingPath(code, "start"), body, &result); err != nil {
		return nil, err
	}
	if result.InterviewID == "" {
		return nil, errors.New("start response is missing interviewId")
	}

	c.logger.Info("Meeting started",
		zap.String("code", code),
		zap.String("interviewID", result.InterviewID),
		zap.Time("endAt", result.EndAt))
	return &result, nil
}

// End ends the meeting
func (c *Client) End(ctx context.Context, code string) error {
	if err := c.do(ctx, "end", http.MethodPost, c.meetingPath(code, "end"), nil, nil); err != nil {
		return err
	}
	c.logger.Info("Meeting ended", zap.String("code", code))
	return nil
}

// Health checks the backend. The body is logged whether or not it is JSON.
func (c *Client) Health(ctx context.Context) error {
	endpoint := c.baseURL + "/health"
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe("health", "error", started)
		c.logger.Warn("HealthCheck failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	rendered := string(raw)
	var parsed any
	if json.Unmarshal(raw, &parsed) == nil {
		if compact, err := json.Marshal(parsed); err == nil {
			rendered = string(compact)
		}
	}

	if resp.StatusCode/100 != 2 {
		observe("health", "error", started)
		c.logger.Warn("HealthCheck failed",
			zap.String("endpoint", endpoint),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", rendered))
		return &APIError{StatusCode: resp.StatusCode}
	}

	observe("health", "ok", started)
	c.logger.Info("HealthCheck", zap.String("endpoint", endpoint), zap.String("response", rendered))
	return nil
}

func (c *Client) meetingPath(code, action string) string {
	p := c.baseURL + "/meetings/" + url.PathEscape(code)
	if action != "" {
		p += "/" + action
	}
	return p
}

// do sends one JSON request. out may be nil when the body is not needed.
func (c *Client) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	started := time.Now()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Sending request to backend", zap.String("method", method), zap.String("url", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe(op, "error", started)
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		observe(op, "error", started)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, apiErr)
		c.logger.Warn("Backend returned error",
			zap.String("op", op),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(raw)))
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			observe(op, "error", started)
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	observe(op, "ok", started)
	return nil
}

func observe(op, outcome string, started time.Time) {
	metrics.APIRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(started).Seconds())
}
