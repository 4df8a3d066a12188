package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Долговременные флаги клиентов (например, был ли клиент залогинен в прошлый раз)

type FlagRedisStorage struct {
	client *redis.Client
	prefix string
}

func NewFlagRedisStorage(client *redis.Client) *FlagRedisStorage {
	return &FlagRedisStorage{
		client: client,
		prefix: "flag:",
	}
}

func (s *FlagRedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}

	return value, true, nil
}

func (s *FlagRedisStorage) Set(ctx context.Context, key string, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

type FlagPostgresStorage struct {
	db *sqlx.DB
}

func NewFlagPostgresStorage(db *sqlx.DB) *FlagPostgresStorage {
	return &FlagPostgresStorage{db: db}
}

func (s *FlagPostgresStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, `SELECT value FROM client_flags WHERE key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return value, true, nil
}

func (s *FlagPostgresStorage) Set(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO client_flags (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key,
		value,
	)

	return err
}

type FlagMemoryStorage struct {
	mu    sync.RWMutex
	flags map[string]string
}

func NewFlagMemoryStorage() *FlagMemoryStorage {
	return &FlagMemoryStorage{flags: make(map[string]string)}
}

func (s *FlagMemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.flags[key]

	return value, ok, nil
}

func (s *FlagMemoryStorage) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags[key] = value

	return nil
}
