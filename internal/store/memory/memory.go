package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"supportbot/internal/domain"
	"supportbot/internal/store"
)

// Storage keeps sessions in process memory. Nothing survives a restart.
type Storage struct {
	mu       sync.RWMutex
	sessions map[string]*session
	seq      int64
	now      func() time.Time
}

type session struct {
	createdAt time.Time
	turns     []domain.Turn
}

func NewStorage() *Storage {
	return &Storage{sessions: make(map[string]*session), now: time.Now}
}

func (s *Storage) EnsureSession(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &session{createdAt: s.now().UTC()}
	}
	return id, nil
}

func (s *Storage) Append(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Turn, error) {
	if err := store.ValidateAppend(sessionID, role); err != nil {
		return domain.Turn{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{createdAt: s.now().UTC()}
		s.sessions[sessionID] = sess
	}
	s.seq++
	t := domain.Turn{Role: role, Content: content, Timestamp: s.now().UTC(), Seq: s.seq}
	sess.turns = append(sess.turns, t)
	return t, nil
}

func (s *Storage) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return []domain.Turn{}, nil
	}
	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// Len returns the number of known sessions.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*session)
	return nil
}
