// Package server exposes the chat service over HTTP and websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"supportbot/internal/service"
)

// maxBodyBytes bounds a chat request body.
const maxBodyBytes = 1 << 20

// Options configures the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AllowedOrigins lists CORS origins; empty or containing "*" allows any origin.
	AllowedOrigins []string
	// FAQEntries is reported by /healthz.
	FAQEntries int
}

// Server is the HTTP front end of the chat service.
type Server struct {
	chat     *service.ChatService
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New creates a Server; call ListenAndServe to start it.
func New(chat *service.ChatService, opts Options, log zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	s := &Server{
		chat:  chat,
		opts:  opts,
		log:   log.With().Str("component", "http").Logger(),
		conns: make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler wrapped in CORS and access-log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions/{session_id}", s.handleSession)
	mux.HandleFunc("GET /api/ws", s.handleWebsocket)
	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// ListenAndServe serves until Shutdown. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.opts.Addr).Msg("server starting")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes open websockets and waits for in-flight
// requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
	s.mu.Unlock()
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
