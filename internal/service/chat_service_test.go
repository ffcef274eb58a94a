package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
	"supportbot/internal/store/memory"
)

func newTestChatService(t *testing.T, c domain.Completer) (*ChatService, *memory.Storage) {
	t.Helper()
	st := memory.NewStorage()
	return NewChatService(st, newTestPipeline(t, c, PipelineOptions{}), nil, zerolog.Nop()), st
}

func TestChat_FAQAnswerInNewSession(t *testing.T) {
	c := &fakeCompleter{reply: "unused"}
	svc, st := newTestChatService(t, c)
	ctx := context.Background()

	res, err := svc.Chat(ctx, "", "What is your return policy?")
	require.NoError(t, err)
	assert.Equal(t, "You can return items within 30 days of delivery.", res.Response)
	assert.Equal(t, domain.ActionReply, res.Action)
	assert.Equal(t, SourceFAQ, res.Source)
	assert.NotEmpty(t, res.SessionID)
	assert.Empty(t, c.calls)

	h, err := svc.History(ctx, res.SessionID)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, domain.RoleUser, h[0].Role)
	assert.Equal(t, "What is your return policy?", h[0].Content)
	assert.Equal(t, domain.RoleAssistant, h[1].Role)
	assert.Equal(t, res.Response, h[1].Content)
	assert.Equal(t, 1, st.Len())
}

func TestChat_NewSessionIDsAreUnique(t *testing.T) {
	svc, _ := newTestChatService(t, &fakeCompleter{reply: "ok"})
	ctx := context.Background()
	a, err := svc.Chat(ctx, "", "hi")
	require.NoError(t, err)
	b, err := svc.Chat(ctx, "", "hi")
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestChat_UnknownSessionIDIsAdopted(t *testing.T) {
	svc, _ := newTestChatService(t, &fakeCompleter{reply: "ok"})
	res, err := svc.Chat(context.Background(), "client-chosen", "hi")
	require.NoError(t, err)
	assert.Equal(t, "client-chosen", res.SessionID)
}

func TestChat_ModelSeesWholeConversation(t *testing.T) {
	c := &fakeCompleter{reply: "Happy to help."}
	svc, _ := newTestChatService(t, c)
	ctx := context.Background()

	first, err := svc.Chat(ctx, "", "hello there")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, first.SessionID, "I have another question")
	require.NoError(t, err)

	require.Len(t, c.calls, 2)
	msgs := c.calls[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hello there", msgs[1].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "I have another question", msgs[3].Content)
}

func TestChat_FailureEscalates(t *testing.T) {
	svc, _ := newTestChatService(t, &fakeCompleter{err: errors.New("down")})
	res, err := svc.Chat(context.Background(), "", "can I pay with bitcoin")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, res.Response)
	assert.Equal(t, domain.ActionEscalate, res.Action)
	assert.Equal(t, SourceFallback, res.Source)
}

func TestChat_EmptyMessage(t *testing.T) {
	svc, st := newTestChatService(t, &fakeCompleter{reply: "ok"})
	_, err := svc.Chat(context.Background(), "", "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, st.Len())
}

func TestHistory_UnknownSession(t *testing.T) {
	svc, _ := newTestChatService(t, &fakeCompleter{})
	h, err := svc.History(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Empty(t, h)
}

// orderCheckingCompleter fails the test if it ever sees a history whose turns are
// not strictly alternating user/assistant.
type orderCheckingCompleter struct {
	t  *testing.T
	mu sync.Mutex
}

func (o *orderCheckingCompleter) Name() string { return "order-check" }

func (o *orderCheckingCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	turns := req.Messages[1:]
	for i, m := range turns {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		assert.Equal(o.t, want, m.Role, "turn %d out of order", i)
	}
	return "noted", nil
}

func TestChat_SameSessionIsSerialized(t *testing.T) {
	c := &orderCheckingCompleter{t: t}
	svc, _ := newTestChatService(t, c)
	ctx := context.Background()
	id, err := svc.store.EnsureSession(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Chat(ctx, id, fmt.Sprintf("question number %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	h, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, h, 20)
	for i, turn := range h {
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, turn.Role)
		} else {
			assert.Equal(t, domain.RoleAssistant, turn.Role)
		}
	}
	assert.Equal(t, 0, svc.locks.size(), "idle sessions keep no lock")
}
