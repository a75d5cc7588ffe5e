package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	positionKeyPrefix    = "pos:"
	preferencesKeyPrefix = "prefs:"
)

var _ Store = (*RedisStore)(nil)

// RedisStore shares positions between machines through a Redis server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. Every key is namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "readaloud:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) positionKey(docID string) string {
	return s.prefix + positionKeyPrefix + docID
}

func (s *RedisStore) preferencesKey(docID string) string {
	return s.prefix + preferencesKeyPrefix + docID
}

func (s *RedisStore) Save(ctx context.Context, docID string, pos Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	pos = pos.normalized()
	return s.set(ctx, s.positionKey(docID), pos)
}

func (s *RedisStore) Load(ctx context.Context, docID string) (Position, error) {
	var pos Position
	if _, err := s.get(ctx, s.positionKey(docID), &pos); err != nil {
		return Position{}, err
	}
	return pos, nil
}

func (s *RedisStore) Clear(ctx context.Context, docID string) error {
	if err := s.client.Del(ctx, s.positionKey(docID), s.preferencesKey(docID)).Err(); err != nil {
		return fmt.Errorf("failed to clear position: %w", err)
	}
	return nil
}

func (s *RedisStore) SavePreferences(ctx context.Context, docID string, prefs Preferences) error {
	return s.set(ctx, s.preferencesKey(docID), prefs)
}

func (s *RedisStore) LoadPreferences(ctx context.Context, docID string) (Preferences, error) {
	var prefs Preferences
	if _, err := s.get(ctx, s.preferencesKey(docID), &prefs); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// get reports false when key does not exist.
func (s *RedisStore) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}
