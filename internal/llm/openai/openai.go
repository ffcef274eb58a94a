package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"supportbot/internal/domain"
)

// ErrNoChoices is returned when a response decodes but carries no completion.
var ErrNoChoices = errors.New("no completion returned")

// Client is an OpenAI-compatible chat completions client implementing domain.Completer.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	retryDelay func(attempt int) time.Duration
}

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv when set.
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a new chat client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		client:     &http.Client{Timeout: t},
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
	}, nil
}

// Name returns the identifier of this completer implementation.
func (c *Client) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete submits the conversation and returns the first choice's content.
// 429 and 5xx responses and transport errors are retried with exponential backoff;
// other non-2xx statuses fail immediately.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	body := chatRequest{Model: req.Model, Temperature: req.Temperature}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/chat/completions", c.baseURL)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt-1, lastErr)); err != nil {
				return "", err
			}
		}
		text, retry, err := c.do(ctx, url, data)
		if err == nil {
			return text, nil
		}
		if !retry || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// retryAfterError carries the server's Retry-After hint.
type retryAfterError struct {
	status string
	after  time.Duration
}

func (e *retryAfterError) Error() string { return "openai chat failed: " + e.status }

func (c *Client) backoff(attempt int, err error) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) && ra.after > 0 {
		return ra.after
	}
	return c.retryDelay(attempt)
}

func (c *Client) do(ctx context.Context, url string, data []byte) (text string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		// Respect Retry-After if provided
		e := &retryAfterError{status: resp.Status}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			e.after = time.Duration(secs) * time.Second
		}
		return "", true, e
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	if resp.StatusCode >= 300 {
		var out chatResponse
		if json.Unmarshal(payload, &out) == nil && out.Error != nil && out.Error.Message != "" {
			return "", false, fmt.Errorf("openai chat failed: %s: %s", resp.Status, out.Error.Message)
		}
		return "", false, fmt.Errorf("openai chat failed: %s", resp.Status)
	}

	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", false, fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, ErrNoChoices
	}
	return out.Choices[0].Message.Content, false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
