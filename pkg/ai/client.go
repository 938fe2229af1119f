package ai

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

	"github.com/sony/gobreaker"

	"github.com/adamgordonbell/c3-azure-demo/pkg/config"
	"github.com/adamgordonbell/c3-azure-demo/pkg/logger"
	"github.com/adamgordonbell/c3-azure-demo/pkg/prompt"
)

// ErrNotConfigured is returned when no completion endpoint is set.
var ErrNotConfigured = errors.New("completion endpoint not configured")

// Client calls an OpenAI-compatible chat-completions endpoint. It classifies
// failures but never retries; degrading is the caller's job. A circuit
// breaker fails fast when the upstream has been misbehaving.
type Client struct {
	cfg        func() config.CompletionConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds a client around a config provider so completion settings
// pick up hot reloads.
func NewClient(cfg func() config.CompletionConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "completion",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("completion breaker state change",
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			},
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt pair upstream and returns the trimmed completion
// text. Every failure comes back as an *Error carrying its classified kind;
// an empty or whitespace-only completion counts as a failure too.
func (c *Client) Generate(ctx context.Context, p prompt.Pair) (string, error) {
	cfg := c.cfg()
	if !cfg.Configured() {
		return "", c.fail(0, ErrNotConfigured, KindUnreachable)
	}

	if n, err := CountTokens(cfg.Model, p.System+p.User); err == nil {
		promptTokenHistogram.Observe(float64(n))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, cfg, p)
	})
	upstreamLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return "", ce
		}
		return "", c.fail(0, err)
	}

	text := strings.TrimSpace(result.(string))
	if text == "" {
		return "", c.fail(0, errors.New("upstream returned an empty completion"), KindEmptyResponse)
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, cfg config.CompletionConfig, p prompt.Pair) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return "", c.fail(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", c.fail(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	// Azure OpenAI style deployments read the key from this header instead.
	req.Header.Set("api-key", cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.fail(0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", c.fail(resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.fail(resp.StatusCode, fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", c.fail(resp.StatusCode, fmt.Errorf("decoding completion response: %w", err))
	}
	if parsed.Error != nil {
		return "", c.fail(resp.StatusCode, fmt.Errorf("upstream error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// fail wraps err as a classified *Error. An explicit kind overrides the
// lookup-table classification.
func (c *Client) fail(status int, err error, kind ...Kind) *Error {
	k := classify(status, err)
	if len(kind) > 0 {
		k = kind[0]
	}
	completionFailures.WithLabelValues(string(k)).Inc()
	return &Error{Kind: k, Status: status, err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
