// Package client talks to a running supportbot server.
package client

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
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"supportbot/internal/domain"
)

// ChatReply is the server's answer to one message.
type ChatReply struct {
	Response  string        `json:"response"`
	SessionID string        `json:"session_id"`
	Action    domain.Action `json:"action"`
}

// Escalated reports whether the server flagged the reply for a human agent.
func (r ChatReply) Escalated() bool { return r.Action == domain.ActionEscalate }

// Message is one turn of a session transcript.
type Message struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is an HTTP client for the chat API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Chat sends message on sessionID; an empty sessionID starts a new session.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (ChatReply, error) {
	body, err := json.Marshal(map[string]string{"message": message, "session_id": sessionID})
	if err != nil {
		return ChatReply{}, err
	}
	var out ChatReply
	err = c.do(ctx, http.MethodPost, "/api/chat", bytes.NewReader(body), &out)
	return out, err
}

// History returns the transcript of sessionID.
func (c *Client) History(ctx context.Context, sessionID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Health returns the number of FAQ entries the server has indexed.
func (c *Client) Health(ctx context.Context) (int, error) {
	var out struct {
		Status     string `json:"status"`
		FAQEntries int    `json:"faq_entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return 0, err
	}
	return out.FAQEntries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(payload))
		if json.Unmarshal(payload, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	return json.Unmarshal(payload, out)
}

// Stream is a websocket chat connection. The server keeps the session for the
// lifetime of the connection.
type Stream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// ErrStreamClosed is returned after Close.
var ErrStreamClosed = errors.New("stream closed")

// Dial opens a websocket chat stream, optionally resuming sessionID.
func (c *Client) Dial(ctx context.Context, sessionID string) (*Stream, error) {
	u, err := url.Parse(c.baseURL + "/api/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if sessionID != "" {
		u.RawQuery = url.Values{"session_id": {sessionID}}.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &Stream{conn: conn}, nil
}

// Send sends one message and waits for the reply.
func (s *Stream) Send(message string) (ChatReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ChatReply{}, ErrStreamClosed
	}
	if err := s.conn.WriteJSON(map[string]string{"message": message}); err != nil {
		return ChatReply{}, err
	}
	var frame struct {
		ChatReply
		Error string `json:"error"`
	}
	if err := s.conn.ReadJSON(&frame); err != nil {
		return ChatReply{}, err
	}
	if frame.Error != "" {
		return ChatReply{}, errors.New(frame.Error)
	}
	return frame.ChatReply, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.conn = nil
	return err
}
