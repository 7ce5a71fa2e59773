// Package session provides Redis-backed storage for admin refresh tokens
// and visitor chat sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshPrefix = "refresh:"
	chatPrefix    = "chat:"

	// Chat sessions expire after 30 days of inactivity and keep at most
	// the last 20 messages.
	chatTTL        = 30 * 24 * time.Hour
	chatHistoryMax = 20
)

var ErrNotFound = errors.New("session not found or expired")

// RefreshData is stored per refresh-token hash.
type RefreshData struct {
	AdminID   string    `json:"admin_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one turn of a visitor conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession holds a visitor conversation and the upstream interaction id
// used to continue it.
type ChatSession struct {
	InteractionID string        `json:"interaction_id,omitempty"`
	History       []ChatMessage `json:"history"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// RedisStore implements refresh-token and chat-session storage.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client (used by tests).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SaveRefreshToken stores a refresh token hash until expiresAt.
func (s *RedisStore) SaveRefreshToken(ctx context.Context, tokenHash, adminID, email string, expiresAt time.Time) error {
	data := RefreshData{
		AdminID:   adminID,
		Email:     email,
		CreatedAt: time.Now(),
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal refresh data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	if err := s.client.Set(ctx, refreshPrefix+tokenHash, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// LookupRefreshToken resolves a refresh token hash to the admin it was
// issued for. Missing or expired tokens return ErrNotFound.
func (s *RedisStore) LookupRefreshToken(ctx context.Context, tokenHash string) (RefreshData, error) {
	jsonData, err := s.client.Get(ctx, refreshPrefix+tokenHash).Result()
	if err == redis.Nil {
		return RefreshData{}, ErrNotFound
	}
	if err != nil {
		return RefreshData{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	var data RefreshData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return RefreshData{}, fmt.Errorf("unmarshal refresh data: %w", err)
	}
	return data, nil
}

// RevokeRefreshToken deletes a refresh token.
func (s *RedisStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, refreshPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// GetChatSession loads a visitor conversation; an unknown chat id returns
// an empty session, not an error.
func (s *RedisStore) GetChatSession(ctx context.Context, chatID string) (ChatSession, error) {
	jsonData, err := s.client.Get(ctx, chatPrefix+chatID).Result()
	if err == redis.Nil {
		return ChatSession{}, nil
	}
	if err != nil {
		return ChatSession{}, fmt.Errorf("get chat session: %w", err)
	}

	var chat ChatSession
	if err := json.Unmarshal([]byte(jsonData), &chat); err != nil {
		return ChatSession{}, fmt.Errorf("unmarshal chat session: %w", err)
	}
	return chat, nil
}

// SaveChatSession persists a conversation, trimming history to the cap and
// resetting the 30-day expiry.
func (s *RedisStore) SaveChatSession(ctx context.Context, chatID string, chat ChatSession) error {
	if len(chat.History) > chatHistoryMax {
		chat.History = chat.History[len(chat.History)-chatHistoryMax:]
	}
	chat.UpdatedAt = time.Now()

	jsonData, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("marshal chat session: %w", err)
	}
	if err := s.client.Set(ctx, chatPrefix+chatID, jsonData, chatTTL).Err(); err != nil {
		return fmt.Errorf("save chat session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
