package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps users as one column per attribute and chats as a JSONB data blob.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a migrated pool (see package db).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*User, error) {
	const q = `
		SELECT user_name, user_provider, idle, last_seen
		FROM users
		WHERE partition_key = $1 AND user_id = $2`

	u := User{UserID: userID}
	err := s.pool.QueryRow(ctx, q, PartitionKey, userID).Scan(&u.UserName, &u.UserProvider, &u.Idle, &u.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &u, nil
}

func (s *PostgresStore) PutUser(ctx context.Context, user *User) error {
	const q = `
		INSERT INTO users (partition_key, user_id, user_name, user_provider, idle, last_seen)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (partition_key, user_id) DO UPDATE
		SET user_name = EXCLUDED.user_name,
		    user_provider = EXCLUDED.user_provider,
		    idle = EXCLUDED.idle,
		    last_seen = NOW()
		RETURNING last_seen`

	var lastSeen time.Time
	err := s.pool.QueryRow(ctx, q, PartitionKey, user.UserID, user.UserName, user.UserProvider, user.Idle).Scan(&lastSeen)
	if err != nil {
		return fmt.Errorf("put user %s: %w", user.UserID, err)
	}
	user.LastSeen = lastSeen
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	const q = `DELETE FROM users WHERE partition_key = $1 AND user_id = $2`

	if _, err := s.pool.Exec(ctx, q, PartitionKey, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) (map[string]*User, error) {
	const q = `
		SELECT user_id, user_name, user_provider, idle, last_seen
		FROM users
		WHERE partition_key = $1`

	rows, err := s.pool.Query(ctx, q, PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*User)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.UserName, &u.UserProvider, &u.Idle, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.UserID] = &u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	const q = `SELECT data, updated_at FROM chats WHERE partition_key = $1 AND chat_id = $2`

	var (
		data      []byte
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, q, PartitionKey, chatID).Scan(&data, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}

	chat, err := decodeChat(data, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode chat %s: %w", chatID, err)
	}
	return chat, nil
}

func (s *PostgresStore) PutChat(ctx context.Context, chat *Chat) error {
	const q = `
		INSERT INTO chats (partition_key, chat_id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (partition_key, chat_id) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = NOW()
		RETURNING updated_at`

	data, err := encodeChat(chat)
	if err != nil {
		return fmt.Errorf("encode chat %s: %w", chat.ID, err)
	}

	var updatedAt time.Time
	if err := s.pool.QueryRow(ctx, q, PartitionKey, chat.ID, string(data)).Scan(&updatedAt); err != nil {
		return fmt.Errorf("put chat %s: %w", chat.ID, err)
	}
	chat.UpdatedAt = updatedAt
	return nil
}

func (s *PostgresStore) DeleteChat(ctx context.Context, chatID string) error {
	const q = `DELETE FROM chats WHERE partition_key = $1 AND chat_id = $2`

	if _, err := s.pool.Exec(ctx, q, PartitionKey, chatID); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *PostgresStore) ListChats(ctx context.Context) (map[string]*Chat, error) {
	const q = `SELECT chat_id, data, updated_at FROM chats WHERE partition_key = $1`

	rows, err := s.pool.Query(ctx, q, PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Chat)
	for rows.Next() {
		var (
			id        string
			data      []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &data, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chat, err := decodeChat(data, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("decode chat %s: %w", id, err)
		}
		out[id] = chat
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return out, nil
}
