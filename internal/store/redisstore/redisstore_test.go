package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/domain"
	"supportbot/internal/store"
	"supportbot/internal/store/storetest"
)

// setupTestStorage connects to the Redis at SUPPORTBOT_TEST_REDIS (default
// localhost:6379) and skips the test when none is reachable.
func setupTestStorage(t *testing.T, ttl time.Duration) *Storage {
	t.Helper()
	addr := os.Getenv("SUPPORTBOT_TEST_REDIS")
	if addr == "" {
		addr = "localhost:6379"
	}
	s, err := New(Config{Addr: addr, Prefix: "supportbot-test:" + uuid.NewString(), TTL: ttl})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := s.RawClient().Keys(ctx, s.cfg.Prefix+":*").Result()
		if len(keys) > 0 {
			s.RawClient().Del(ctx, keys...)
		}
		s.Close()
	})
	return s
}

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Storage { return setupTestStorage(t, 0) })
}

func TestStorage_TTL(t *testing.T) {
	s := setupTestStorage(t, time.Minute)
	ctx := context.Background()

	id, err := s.EnsureSession(ctx, "")
	require.NoError(t, err)
	_, err = s.Append(ctx, id, domain.RoleUser, "hi")
	require.NoError(t, err)

	ttl, err := s.RawClient().TTL(ctx, s.messagesKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestStorage_KeyLayout(t *testing.T) {
	s := NewFromClient(nil, Config{})
	assert.Equal(t, "supportbot:session:abc", s.sessionKey("abc"))
	assert.Equal(t, "supportbot:messages:abc", s.messagesKey("abc"))
}
