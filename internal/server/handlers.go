package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"supportbot/internal/domain"
	"supportbot/internal/service"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string        `json:"response"`
	SessionID string        `json:"session_id"`
	Action    domain.Action `json:"action"`
}

type messageView struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []messageView `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AI Customer Support Bot API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "faq_entries": s.opts.FAQEntries})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, status, err := s.chatTurn(r, req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// chatTurn runs one chat turn and maps service errors to HTTP statuses.
func (s *Server) chatTurn(r *http.Request, req chatRequest) (chatResponse, int, error) {
	res, err := s.chat.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			return chatResponse{}, http.StatusBadRequest, err
		}
		s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("chat failed")
		return chatResponse{}, http.StatusInternalServerError, errors.New("internal error")
	}
	return chatResponse{Response: res.Response, SessionID: res.SessionID, Action: res.Action}, http.StatusOK, nil
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	turns, err := s.chat.History(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", id).Msg("load history failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	msgs := make([]messageView, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, messageView{Role: t.Role, Content: t.Content, Timestamp: t.Timestamp})
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Messages: msgs})
}
