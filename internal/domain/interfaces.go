package domain

import (
	"context"
	"time"
)

// Role tags the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// FAQEntry is a single question/answer pair of the FAQ corpus.
type FAQEntry struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// FAQMatch is the best corpus entry for a query together with its similarity score.
type FAQMatch struct {
	Entry FAQEntry
	Index int
	Score float64
}

// Turn is one message of a conversation. Seq is the position assigned by the store
// and is the authoritative ordering; timestamps may collide.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"-"`
}

// Action is what the client should do with a reply.
type Action string

const (
	ActionReply    Action = "reply"
	ActionEscalate Action = "escalate"
)

// Message is a role-tagged message sent to a completion provider.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
}

// Completer is the remote completion capability: given ordered role-tagged messages
// it returns one text completion or fails.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CorpusSource loads the FAQ corpus once at startup.
type CorpusSource interface {
	Name() string
	Load(ctx context.Context) ([]FAQEntry, error)
}

// ConversationStore persists sessions and their ordered turns.
type ConversationStore interface {
	// EnsureSession returns id if the session exists, creates it if it does not,
	// and creates a session with a fresh id when id is empty.
	EnsureSession(ctx context.Context, id string) (string, error)
	// Append adds a turn to the end of the session's history.
	Append(ctx context.Context, sessionID string, role Role, content string) (Turn, error)
	// History returns the session's turns in append order. Unknown sessions yield an empty slice.
	History(ctx context.Context, sessionID string) ([]Turn, error)
	Close() error
}
