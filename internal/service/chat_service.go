package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"supportbot/internal/domain"
	"supportbot/internal/metrics"
)

// ErrEmptyMessage is returned by Chat for a blank user message.
var ErrEmptyMessage = errors.New("message is required")

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Response  string
	SessionID string
	Action    domain.Action
	Source    ReplySource
}

// ChatService runs a user message through the store, the reply pipeline and the
// escalation detector.
type ChatService struct {
	store    domain.ConversationStore
	pipeline *ReplyPipeline
	detector *EscalationDetector
	locks    *sessionLocks
	log      zerolog.Logger
}

// NewChatService creates a ChatService. A nil detector uses the default phrases.
func NewChatService(store domain.ConversationStore, pipeline *ReplyPipeline, detector *EscalationDetector, log zerolog.Logger) *ChatService {
	if detector == nil {
		detector = defaultDetector
	}
	return &ChatService{
		store:    store,
		pipeline: pipeline,
		detector: detector,
		locks:    newSessionLocks(),
		log:      log.With().Str("component", "chat").Logger(),
	}
}

// Chat appends message to the session, generates and stores the reply, and classifies
// it. An empty or unknown sessionID starts a new session. Turns of one session are
// processed one request at a time.
func (s *ChatService) Chat(ctx context.Context, sessionID, message string) (ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return ChatResult{}, ErrEmptyMessage
	}
	id, err := s.store.EnsureSession(ctx, sessionID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("ensure session: %w", err)
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.store.Append(ctx, id, domain.RoleUser, message); err != nil {
		return ChatResult{}, fmt.Errorf("append user turn: %w", err)
	}
	history, err := s.store.History(ctx, id)
	if err != nil {
		return ChatResult{}, fmt.Errorf("load history: %w", err)
	}

	reply := s.pipeline.Reply(ctx, history)

	if _, err := s.store.Append(ctx, id, domain.RoleAssistant, reply.Text); err != nil {
		return ChatResult{}, fmt.Errorf("append assistant turn: %w", err)
	}

	action := domain.ActionReply
	if s.detector.ShouldEscalate(message, reply.Text) {
		action = domain.ActionEscalate
		metrics.Escalations.Inc()
	}
	s.log.Info().
		Str("session_id", id).
		Str("source", string(reply.Source)).
		Str("action", string(action)).
		Int("turns", len(history)+1).
		Msg("chat turn")

	return ChatResult{Response: reply.Text, SessionID: id, Action: action, Source: reply.Source}, nil
}

// History returns the ordered turns of a session; unknown sessions have none.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	turns, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}

// sessionLocks hands out one mutex per session id and forgets it once no request
// holds or waits for it.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
