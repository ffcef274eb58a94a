package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, APIKey: "test-key", MaxRetries: retries})
	require.NoError(t, err)
	c.retryDelay = func(int) time.Duration { return time.Millisecond }
	return c
}

var testRequest = domain.CompletionRequest{
	Model:       "gpt-3.5-turbo",
	Temperature: 0.7,
	Messages: []domain.Message{
		{Role: domain.RoleSystem, Content: "be nice"},
		{Role: domain.RoleUser, Content: "hi"},
	},
}

func TestComplete_SendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-3.5-turbo", body.Model)
		assert.InDelta(t, 0.7, body.Temperature, 1e-9)
		assert.Equal(t, []chatMessage{{Role: "system", Content: "be nice"}, {Role: "user", Content: "hi"}}, body.Messages)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello!"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv.URL, 0).Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", got)
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"finally"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv.URL, 2).Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "finally", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).Complete(context.Background(), testRequest)
	assert.ErrorContains(t, err, "429")
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Complete(context.Background(), testRequest)
	assert.ErrorContains(t, err, "Incorrect API key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 0).Complete(context.Background(), testRequest)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestComplete_UndecodablePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 0).Complete(context.Background(), testRequest)
	assert.ErrorContains(t, err, "decode completion")
}

func TestComplete_ContextCancelStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	c.retryDelay = func(int) time.Duration { return time.Hour }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Complete(ctx, testRequest)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_OPENAI_KEY"})
	assert.ErrorContains(t, err, "TEST_OPENAI_KEY")

	t.Setenv("TEST_OPENAI_KEY", "sk-env")
	c, err := NewClient(Config{APIKeyEnv: "TEST_OPENAI_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "sk-env", c.apiKey)
	assert.Equal(t, "https://api.openai.com/v1", c.baseURL)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}
