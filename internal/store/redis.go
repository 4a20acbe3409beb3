package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/devroom-sh/devroom/internal/models"
)

const (
	messageTTL = 24 * time.Hour
)

// RedisStore handles Redis operations: the token blacklist consulted at
// verification time and the short-lived room chat history.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that needs it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// blacklistKey returns the key for a revoked token.
func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

// roomMessagesKey returns the key for a project's message sorted set.
func roomMessagesKey(projectID string) string {
	return fmt.Sprintf("room:%s:messages", projectID)
}

// RevokeToken blacklists a token until it would have expired anyway.
func (s *RedisStore) RevokeToken(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, blacklistKey(token), "true", ttl).Err()
}

// IsRevoked reports whether a token has been blacklisted.
// Fails open on Redis errors so a cache outage does not lock everyone out.
func (s *RedisStore) IsRevoked(ctx context.Context, token string) bool {
	exists, err := s.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// AddMessage appends a chat message to the project's room history.
func (s *RedisStore) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomMessagesKey(msg.ProjectID)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	s.client.Expire(ctx, key, messageTTL)
	return nil
}

// RecentMessages returns the newest messages for a project room,
// oldest first, so a late joiner can backfill its chat view.
func (s *RedisStore) RecentMessages(ctx context.Context, projectID string, limit int) ([]models.Message, error) {
	key := roomMessagesKey(projectID)

	results, err := s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		var msg models.Message
		if err := json.Unmarshal([]byte(results[i]), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
