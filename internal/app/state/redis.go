package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis hash keys, one per partition.
const (
	redisUsersKey = PartitionKey + ":users"
	redisChatsKey = PartitionKey + ":chats"
)

// RedisStore keeps each partition in one hash, one field per entity id.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// redisChat mirrors the table layout: the entity blob under data plus the store timestamp.
type redisChat struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

// NewRedisClient builds a client with the timeouts used across the service.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func (s *RedisStore) GetUser(ctx context.Context, userID string) (*User, error) {
	raw, err := s.rdb.HGet(ctx, redisUsersKey, userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return &u, nil
}

func (s *RedisStore) PutUser(ctx context.Context, user *User) error {
	user.LastSeen = s.now().UTC()

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", user.UserID, err)
	}
	if err := s.rdb.HSet(ctx, redisUsersKey, user.UserID, raw).Err(); err != nil {
		return fmt.Errorf("put user %s: %w", user.UserID, err)
	}
	return nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) error {
	if err := s.rdb.HDel(ctx, redisUsersKey, userID).Err(); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) ListUsers(ctx context.Context) (map[string]*User, error) {
	all, err := s.rdb.HGetAll(ctx, redisUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make(map[string]*User, len(all))
	for id, raw := range all {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", id, err)
		}
		out[id] = &u
	}
	return out, nil
}

func (s *RedisStore) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	raw, err := s.rdb.HGet(ctx, redisChatsKey, chatID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return decodeRedisChat(chatID, raw)
}

func (s *RedisStore) PutChat(ctx context.Context, chat *Chat) error {
	data, err := encodeChat(chat)
	if err != nil {
		return fmt.Errorf("encode chat %s: %w", chat.ID, err)
	}

	rec := redisChat{Data: data, UpdatedAt: s.now().UTC()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode chat %s: %w", chat.ID, err)
	}
	if err := s.rdb.HSet(ctx, redisChatsKey, chat.ID, raw).Err(); err != nil {
		return fmt.Errorf("put chat %s: %w", chat.ID, err)
	}
	chat.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *RedisStore) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.rdb.HDel(ctx, redisChatsKey, chatID).Err(); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *RedisStore) ListChats(ctx context.Context) (map[string]*Chat, error) {
	all, err := s.rdb.HGetAll(ctx, redisChatsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	out := make(map[string]*Chat, len(all))
	for id, raw := range all {
		chat, err := decodeRedisChat(id, []byte(raw))
		if err != nil {
			return nil, err
		}
		out[id] = chat
	}
	return out, nil
}

func decodeRedisChat(id string, raw []byte) (*Chat, error) {
	var rec redisChat
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode chat %s: %w", id, err)
	}
	chat, err := decodeChat(rec.Data, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode chat %s: %w", id, err)
	}
	return chat, nil
}
