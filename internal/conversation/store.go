// Package conversation persists per-conversation chat history so the
// engine can hand prior turns to generation nodes.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/botweaver/engine/internal/workflow"
)

// Senders recorded in conversation history.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// History holds the stored messages of one conversation.
type History struct {
	Messages []workflow.HistoryMessage `json:"messages"`
}

// Store is the conversation history repository.
type Store interface {
	Load(ctx context.Context, botID, conversationID string) (*History, error)
	Append(ctx context.Context, botID, conversationID string, msg workflow.HistoryMessage) error
	HealthCheck(ctx context.Context) error
}

// RedisStore keeps conversation history in Redis with a sliding TTL.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
}

// NewRedisStore connects to the Redis instance named by REDIS_URL.
// maxTurns bounds the stored history; older turns are dropped on append.
func NewRedisStore(ctx context.Context, ttl time.Duration, maxTurns int) (*RedisStore, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:   client,
		ttl:      ttl,
		maxTurns: maxTurns,
	}, nil
}

func historyKey(botID, conversationID string) string {
	return "conversation:" + botID + ":" + conversationID
}

// Load returns the stored history, empty when none exists, and refreshes
// the conversation TTL.
func (r *RedisStore) Load(ctx context.Context, botID, conversationID string) (*History, error) {
	key := historyKey(botID, conversationID)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return &History{Messages: []workflow.HistoryMessage{}}, nil
		}
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var history History
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	r.client.Expire(ctx, key, r.ttl)
	return &history, nil
}

// Append adds one message to the conversation, trimming to the configured
// turn limit, and saves the result with a fresh TTL.
func (r *RedisStore) Append(ctx context.Context, botID, conversationID string, msg workflow.HistoryMessage) error {
	history, err := r.Load(ctx, botID, conversationID)
	if err != nil {
		return err
	}

	history.Messages = trimTail(append(history.Messages, msg), r.maxTurns)

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	return r.client.Set(ctx, historyKey(botID, conversationID), data, r.ttl).Err()
}

// HealthCheck pings Redis.
func (r *RedisStore) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// trimTail keeps the most recent maxTurns messages. A non-positive limit
// disables trimming.
func trimTail(messages []workflow.HistoryMessage, maxTurns int) []workflow.HistoryMessage {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
