// Package redis stores session state in Redis. Each session is one JSON
// value whose TTL is the idle timeout, refreshed on every write, so idle
// sessions expire without a janitor.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// Client is the subset of go-redis used here.
type Client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

type Config struct {
	Address     string
	Password    string
	DB          int
	Prefix      string
	IdleTimeout time.Duration
}

type SessionStore struct {
	cfg    Config
	client Client
}

// NewSessionStore connects to Redis and verifies the connection with PING.
func NewSessionStore(ctx context.Context, cfg Config) (*SessionStore, error) {
	opts := &redis.Options{Addr: cfg.Address, DB: cfg.DB}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis session store: ping %s: %w", cfg.Address, err)
	}
	return NewSessionStoreWithClient(cfg, client), nil
}

// NewSessionStoreWithClient wraps an existing client.
func NewSessionStoreWithClient(cfg Config, client Client) *SessionStore {
	return &SessionStore{cfg: cfg, client: client}
}

func (s *SessionStore) key(id domain.SessionID) string {
	return s.cfg.Prefix + "session:" + string(id)
}

func (s *SessionStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.SessionContext, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GetSession: %w", err)
	}

	var sess domain.SessionContext
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("redis GetSession decode: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) PutSession(ctx context.Context, session *domain.SessionContext) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis PutSession encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), raw, s.cfg.IdleTimeout).Err(); err != nil {
		return fmt.Errorf("redis PutSession: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id domain.SessionID) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis DeleteSession: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Ping checks the connection, for health checks.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}
