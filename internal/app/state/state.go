/*
Package state is the durable store for presence and chat records.

It holds two partitions, users and chats, addressed by entity id. The store is the only
source of truth: callers read, modify and write back whole records, and concurrent writers
resolve by last-writer-wins. No backend offers compare-and-swap.
*/
package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// PartitionKey is the partition every record is written under.
const PartitionKey = "chatr"

// ErrNotFound is returned by Get operations when the record does not exist.
var ErrNotFound = errors.New("state: record not found")

// User is the presence record of an online user. A record exists only while the user is online.
type User struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserProvider string `json:"userProvider"`
	Idle         bool   `json:"idle"`

	// LastSeen is stamped by the store on every write and read by the stale-record sweep.
	LastSeen time.Time `json:"lastSeen"`
}

// Member is the per-user entry embedded in Chat.Members.
type Member struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Chat is a group chat room and its membership.
type Chat struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Members map[string]Member `json:"members"`
	Owner   string            `json:"owner,omitempty"`

	// UpdatedAt is stamped by the store on every write. It is not part of the serialized entity.
	UpdatedAt time.Time `json:"-"`
}

// NewChat returns an empty chat owned by owner.
func NewChat(id, name, owner string) *Chat {
	return &Chat{
		ID:      id,
		Name:    name,
		Members: make(map[string]Member),
		Owner:   owner,
	}
}

// HasMember reports whether userID is in the chat.
func (c *Chat) HasMember(userID string) bool {
	_, ok := c.Members[userID]
	return ok
}

// Store is the State Store Adapter consumed by the presence, room and pairing components.
type Store interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	PutUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) (map[string]*User, error)

	GetChat(ctx context.Context, chatID string) (*Chat, error)
	PutChat(ctx context.Context, chat *Chat) error
	DeleteChat(ctx context.Context, chatID string) error
	ListChats(ctx context.Context) (map[string]*Chat, error)
}

// encodeChat serializes the entity blob written under the chat record's data field.
func encodeChat(chat *Chat) ([]byte, error) {
	return json.Marshal(chat)
}

// decodeChat parses a data blob. A null or missing members map decodes as empty.
func decodeChat(data []byte, updatedAt time.Time) (*Chat, error) {
	var chat Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, err
	}
	if chat.Members == nil {
		chat.Members = make(map[string]Member)
	}
	chat.UpdatedAt = updatedAt
	return &chat, nil
}
