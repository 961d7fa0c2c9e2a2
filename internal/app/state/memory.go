package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Chats are held as serialized blobs so
// callers never share a members map with the store, matching the remote backends.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
	chats map[string]memoryChat
	now   func() time.Time
}

type memoryChat struct {
	data      []byte
	updatedAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the clock used to stamp LastSeen and UpdatedAt.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users: make(map[string]User),
		chats: make(map[string]memoryChat),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) PutUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.LastSeen = s.now()
	s.users[user.UserID] = *user
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, userID)
	return nil
}

func (s *MemoryStore) ListUsers(_ context.Context) (map[string]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*User, len(s.users))
	for id, u := range s.users {
		u := u
		out[id] = &u
	}
	return out, nil
}

func (s *MemoryStore) GetChat(_ context.Context, chatID string) (*Chat, error) {
	s.mu.RLock()
	rec, ok := s.chats[chatID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decodeChat(rec.data, rec.updatedAt)
}

func (s *MemoryStore) PutChat(_ context.Context, chat *Chat) error {
	data, err := encodeChat(chat)
	if err != nil {
		return fmt.Errorf("encode chat %s: %w", chat.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat.UpdatedAt = s.now()
	s.chats[chat.ID] = memoryChat{data: data, updatedAt: chat.UpdatedAt}
	return nil
}

func (s *MemoryStore) DeleteChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chats, chatID)
	return nil
}

func (s *MemoryStore) ListChats(_ context.Context) (map[string]*Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Chat, len(s.chats))
	for id, rec := range s.chats {
		chat, err := decodeChat(rec.data, rec.updatedAt)
		if err != nil {
			return nil, fmt.Errorf("decode chat %s: %w", id, err)
		}
		out[id] = chat
	}
	return out, nil
}
