package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"supportbot/internal/metrics"
)

// handleWebsocket runs chat turns over one websocket connection. Frames carry the
// same JSON as POST /api/chat; the session id of the first reply is reused for later
// frames that omit one.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.track(conn, true)
	metrics.ActiveWebsockets.Inc()
	defer func() {
		metrics.ActiveWebsockets.Dec()
		s.track(conn, false)
		conn.Close()
	}()

	sessionID := r.URL.Query().Get("session_id")
	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if isJSONError(err) {
				if werr := conn.WriteJSON(errorResponse{Error: "invalid JSON frame"}); werr != nil {
					return
				}
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}
		resp, _, err := s.chatTurn(r, req)
		var out any = resp
		if err != nil {
			out = errorResponse{Error: err.Error()}
		} else {
			sessionID = resp.SessionID
		}
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

func (s *Server) track(c *websocket.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func isJSONError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
