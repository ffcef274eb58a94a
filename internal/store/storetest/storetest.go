// Package storetest holds behaviour tests shared by every conversation store backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
	"supportbot/internal/store"
)

// Run exercises a backend produced by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.Storage) {
	t.Run("EnsureSessionGeneratesID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, err := s.EnsureSession(ctx, "")
		require.NoError(t, err)
		b, err := s.EnsureSession(ctx, "")
		require.NoError(t, err)
		assert.NotEmpty(t, a)
		assert.NotEqual(t, a, b)
	})

	t.Run("EnsureSessionKeepsGivenID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id, err := s.EnsureSession(ctx, "custom-session")
		require.NoError(t, err)
		assert.Equal(t, "custom-session", id)
		id, err = s.EnsureSession(ctx, "custom-session")
		require.NoError(t, err)
		assert.Equal(t, "custom-session", id)
	})

	t.Run("UnknownSessionHasEmptyHistory", func(t *testing.T) {
		s := newStore(t)
		turns, err := s.History(context.Background(), "does-not-exist")
		require.NoError(t, err)
		assert.NotNil(t, turns)
		assert.Empty(t, turns)
	})

	t.Run("HistoryPreservesAppendOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id, err := s.EnsureSession(ctx, "")
		require.NoError(t, err)

		want := []domain.Turn{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "Hello! How can I help you today?"},
			{Role: domain.RoleUser, Content: "where is my order"},
			{Role: domain.RoleAssistant, Content: "It ships tomorrow."},
		}
		var lastSeq int64
		for _, w := range want {
			turn, err := s.Append(ctx, id, w.Role, w.Content)
			require.NoError(t, err)
			assert.Greater(t, turn.Seq, lastSeq)
			assert.False(t, turn.Timestamp.IsZero())
			lastSeq = turn.Seq
		}

		got, err := s.History(ctx, id)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(domain.Turn{}, "Timestamp", "Seq")); diff != "" {
			t.Errorf("history mismatch (-want +got):\n%s", diff)
		}
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i].Seq, got[i-1].Seq)
		}
	})

	t.Run("SessionsAreIsolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, _ := s.EnsureSession(ctx, "")
		b, _ := s.EnsureSession(ctx, "")
		_, err := s.Append(ctx, a, domain.RoleUser, "from a")
		require.NoError(t, err)
		_, err = s.Append(ctx, b, domain.RoleUser, "from b")
		require.NoError(t, err)

		ha, err := s.History(ctx, a)
		require.NoError(t, err)
		require.Len(t, ha, 1)
		assert.Equal(t, "from a", ha[0].Content)
	})

	t.Run("AppendRejectsBadInput", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Append(ctx, "x", domain.Role("robot"), "beep")
		assert.ErrorIs(t, err, store.ErrInvalidRole)
		_, err = s.Append(ctx, "", domain.RoleUser, "hi")
		assert.ErrorIs(t, err, store.ErrEmptySession)
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id, err := s.EnsureSession(ctx, "")
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Append(ctx, id, domain.RoleUser, fmt.Sprintf("msg %d", i))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := s.History(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got, n)
	})
}
