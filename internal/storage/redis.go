package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/balancy/pizza-bot/internal/models"
)

// RedisStore persists sessions in Redis as JSON values with a TTL, so
// abandoned conversations age out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(addr, password string, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

func (r *RedisStore) GetSession(userID string) (*models.Session, error) {
	raw, err := r.client.Get(context.Background(), sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session for %s: %w", userID, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session for %s: %w", userID, err)
	}
	return &session, nil
}

func (r *RedisStore) SaveSession(session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session for %s: %w", session.UserID, err)
	}

	return r.client.Set(context.Background(), sessionKey(session.UserID), raw, r.ttl).Err()
}

func (r *RedisStore) DeleteSession(userID string) error {
	return r.client.Del(context.Background(), sessionKey(userID)).Err()
}

// Ping verifies the Redis connection on startup.
func (r *RedisStore) Ping() error {
	return r.client.Ping(context.Background()).Err()
}
