package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
	"supportbot/internal/faq"
	"supportbot/internal/service"
	"supportbot/internal/store/memory"
)

const returnAnswer = "You can return items within 30 days of delivery."

type stubCompleter struct {
	reply string
	err   error
}

func (s stubCompleter) Name() string { return "stub" }

func (s stubCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	return s.reply, s.err
}

// failingStore fails every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) EnsureSession(ctx context.Context, id string) (string, error) {
	return "", errStoreDown
}
func (failingStore) Append(ctx context.Context, id string, role domain.Role, content string) (domain.Turn, error) {
	return domain.Turn{}, errStoreDown
}
func (failingStore) History(ctx context.Context, id string) ([]domain.Turn, error) {
	return nil, errStoreDown
}
func (failingStore) Close() error { return nil }

func newTestServer(t *testing.T, store domain.ConversationStore, c domain.Completer, opts Options) *Server {
	t.Helper()
	idx, err := faq.Build([]domain.FAQEntry{
		{Question: "What is your return policy?", Answer: returnAnswer},
		{Question: "How do I track my order?", Answer: "Use the tracking link in your confirmation email."},
	}, faq.Options{})
	require.NoError(t, err)
	pipeline := service.NewReplyPipeline(idx, c, service.PipelineOptions{}, zerolog.Nop())
	chat := service.NewChatService(store, pipeline, nil, zerolog.Nop())
	opts.FAQEntries = idx.Len()
	return New(chat, opts, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestChatThenHistory(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{reply: "unused"}, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/chat", `{"message":"What is your return policy?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	chat := decode[chatResponse](t, rec)
	assert.Equal(t, returnAnswer, chat.Response)
	assert.Equal(t, domain.ActionReply, chat.Action)
	require.NotEmpty(t, chat.SessionID)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+chat.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[sessionResponse](t, rec)
	assert.Equal(t, chat.SessionID, hist.SessionID)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, domain.RoleUser, hist.Messages[0].Role)
	assert.Equal(t, "What is your return policy?", hist.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, hist.Messages[1].Role)
	assert.Equal(t, returnAnswer, hist.Messages[1].Content)
	assert.False(t, hist.Messages[0].Timestamp.IsZero())
}

func TestChat_ContinuesSession(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{reply: "We open at 9."}, Options{}).Handler()

	first := decode[chatResponse](t, do(t, h, http.MethodPost, "/api/chat", `{"message":"hello"}`))
	second := decode[chatResponse](t, do(t, h, http.MethodPost, "/api/chat",
		`{"message":"how do I track my order","session_id":"`+first.SessionID+`"}`))
	assert.Equal(t, first.SessionID, second.SessionID)

	hist := decode[sessionResponse](t, do(t, h, http.MethodGet, "/api/sessions/"+first.SessionID, ""))
	assert.Len(t, hist.Messages, 4)
}

func TestChat_FallbackEscalates(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{err: errors.New("timeout")}, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/chat", `{"message":"can I pay with bitcoin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	chat := decode[chatResponse](t, rec)
	assert.Equal(t, service.FallbackReply, chat.Response)
	assert.Equal(t, domain.ActionEscalate, chat.Action)
}

func TestChat_BadRequests(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{reply: "x"}, Options{}).Handler()

	for name, body := range map[string]string{
		"invalid json":    `{"message":`,
		"missing message": `{"session_id":"abc"}`,
		"blank message":   `{"message":"   "}`,
		"wrong type":      `{"message":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/chat", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestChat_StoreFailureIs500(t *testing.T) {
	h := newTestServer(t, failingStore{}, stubCompleter{reply: "x"}, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "store down")

	rec = do(t, h, http.MethodGet, "/api/sessions/abc", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSession_UnknownIsEmpty(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{}, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/api/sessions/does-not-exist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"does-not-exist","messages":[]}`, rec.Body.String())
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{}, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/", "")
	assert.JSONEq(t, `{"message":"AI Customer Support Bot API is running"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.JSONEq(t, `{"status":"ok","faq_entries":2}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/chat", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{}, Options{}).Handler()
	do(t, h, http.MethodGet, "/healthz", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `supportbot_http_requests_total{method="GET",route="/healthz",status="200"}`)
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{}, Options{}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Content-Type")

	rec = do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	h := newTestServer(t, memory.NewStorage(), stubCompleter{}, Options{
		AllowedOrigins: []string{"https://shop.example.com"},
	}).Handler()

	get := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, "https://shop.example.com", get("https://shop.example.com").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, get("https://evil.example.com").Header().Get("Access-Control-Allow-Origin"))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/api/ws"
}

func TestWebsocketChat(t *testing.T) {
	store := memory.NewStorage()
	ts := httptest.NewServer(newTestServer(t, store, stubCompleter{reply: "We open at 9."}, Options{}).Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "What is your return policy?"}))
	var first chatResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, returnAnswer, first.Response)
	require.NotEmpty(t, first.SessionID)

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "when do you open"}))
	var second chatResponse
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "We open at 9.", second.Response)
	assert.Equal(t, first.SessionID, second.SessionID, "the connection remembers its session")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{bad")))
	var bad errorResponse
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "invalid JSON frame", bad.Error)

	require.NoError(t, conn.WriteJSON(chatRequest{Message: " "}))
	var blank errorResponse
	require.NoError(t, conn.ReadJSON(&blank))
	assert.Equal(t, service.ErrEmptyMessage.Error(), blank.Error)

	turns, err := store.History(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestServer_ListenAndShutdown(t *testing.T) {
	s := newTestServer(t, memory.NewStorage(), stubCompleter{}, Options{Addr: "127.0.0.1:0"})
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe() }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWriteJSONBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "short and stout")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "{\"error\":\"short and stout\"}\n", rec.Body.String())
	assert.True(t, bytes.HasSuffix(rec.Body.Bytes(), []byte("\n")))
}
