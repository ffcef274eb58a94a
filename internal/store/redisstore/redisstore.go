// Package redisstore stores chat sessions in Redis: a hash per session and a list of
// JSON-encoded turns whose RPUSH order is the history order.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"supportbot/internal/domain"
	"supportbot/internal/store"
)

// Config holds the Redis connection and key layout.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key; defaults to "supportbot".
	Prefix string
	// TTL expires idle sessions; zero keeps them forever.
	TTL time.Duration
}

// Storage is a Redis-backed conversation store.
type Storage struct {
	rdb *redis.Client
	cfg Config
	now func() time.Time
}

type record struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Storage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewFromClient(rdb, cfg), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *redis.Client, cfg Config) *Storage {
	if cfg.Prefix == "" {
		cfg.Prefix = "supportbot"
	}
	return &Storage{rdb: rdb, cfg: cfg, now: time.Now}
}

func (s *Storage) sessionKey(id string) string  { return s.cfg.Prefix + ":session:" + id }
func (s *Storage) messagesKey(id string) string { return s.cfg.Prefix + ":messages:" + id }

func (s *Storage) EnsureSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, s.sessionKey(id), "created_at", s.now().UTC().Format(time.RFC3339Nano))
		if s.cfg.TTL > 0 {
			pipe.Expire(ctx, s.sessionKey(id), s.cfg.TTL)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ensure session: %w", err)
	}
	return id, nil
}

func (s *Storage) Append(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Turn, error) {
	if err := store.ValidateAppend(sessionID, role); err != nil {
		return domain.Turn{}, err
	}
	ts := s.now().UTC()
	data, err := json.Marshal(record{Role: role, Content: content, Timestamp: ts})
	if err != nil {
		return domain.Turn{}, fmt.Errorf("encode turn: %w", err)
	}

	var push *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, s.sessionKey(sessionID), "created_at", ts.Format(time.RFC3339Nano))
		push = pipe.RPush(ctx, s.messagesKey(sessionID), data)
		if s.cfg.TTL > 0 {
			pipe.Expire(ctx, s.sessionKey(sessionID), s.cfg.TTL)
			pipe.Expire(ctx, s.messagesKey(sessionID), s.cfg.TTL)
		}
		return nil
	})
	if err != nil {
		return domain.Turn{}, fmt.Errorf("rpush failed: %w", err)
	}
	return domain.Turn{Role: role, Content: content, Timestamp: ts, Seq: push.Val()}, nil
}

func (s *Storage) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	raw, err := s.rdb.LRange(ctx, s.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	turns := make([]domain.Turn, 0, len(raw))
	for i, item := range raw {
		var r record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode turn %d: %w", i, err)
		}
		turns = append(turns, domain.Turn{Role: r.Role, Content: r.Content, Timestamp: r.Timestamp, Seq: int64(i + 1)})
	}
	return turns, nil
}

// RawClient exposes the underlying client, mainly for test cleanup.
func (s *Storage) RawClient() *redis.Client {
	return s.rdb
}

func (s *Storage) Close() error {
	return s.rdb.Close()
}
