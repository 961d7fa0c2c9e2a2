/*
Package rooms owns the group chat lifecycle: creation, membership, and deletion.

A chat is either absent or active. It becomes absent when its owner deletes it or when
its last member leaves; an empty chat is never written back to the store.
*/
package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"chatr/internal/app/notify"
	"chatr/internal/app/pairing"
	"chatr/internal/app/state"
	"chatr/internal/pkg/logx"
)

// DefaultJoinAnnounceDelay gives the joining socket time to settle before the room hears about it.
const DefaultJoinAnnounceDelay = time.Second

var (
	// ErrDuplicateChat is returned by CreateChat when the id is taken.
	ErrDuplicateChat = errors.New("rooms: chat already exists")

	// ErrReservedChatID is returned by CreateChat for ids in the private chat namespace.
	ErrReservedChatID = errors.New("rooms: chat id is reserved for private chats")
)

// Registry applies membership changes to chat records. It keeps no state of its own.
type Registry struct {
	store     state.Store
	joinDelay time.Duration
	logger    zerolog.Logger
}

// NewRegistry returns a Registry over store.
func NewRegistry(store state.Store, joinDelay time.Duration) *Registry {
	return &Registry{
		store:     store,
		joinDelay: joinDelay,
		logger:    logx.Component("rooms"),
	}
}

// CreateChat stores a new, empty chat owned by ownerID and announces it to everyone.
func (r *Registry) CreateChat(ctx context.Context, chatID, name, ownerID string) ([]notify.Notification, error) {
	if pairing.IsPrivateChatID(chatID) {
		return nil, fmt.Errorf("%w: %s", ErrReservedChatID, chatID)
	}

	_, err := r.store.GetChat(ctx, chatID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrDuplicateChat, chatID)
	case !errors.Is(err, state.ErrNotFound):
		return nil, fmt.Errorf("load chat %s: %w", chatID, err)
	}

	chat := state.NewChat(chatID, name, ownerID)
	if err := r.store.PutChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat %s: %w", chatID, err)
	}

	r.logger.Info().Str("chat_id", chatID).Str("owner_id", ownerID).Str("name", name).Msg("Chat created")

	return []notify.Notification{notify.BroadcastAll(notify.EventChatCreated, chat)}, nil
}

// JoinChat adds userID to the chat. Joining an unknown chat is logged and ignored.
func (r *Registry) JoinChat(ctx context.Context, chatID, userID, userName string) ([]notify.Notification, error) {
	chat, err := r.store.GetChat(ctx, chatID)
	if errors.Is(err, state.ErrNotFound) {
		r.logger.Info().Str("chat_id", chatID).Str("user_id", userID).Msg("Join ignored, chat does not exist")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chat %s: %w", chatID, err)
	}

	chat.Members[userID] = state.Member{UserID: userID, UserName: userName}
	if err := r.store.PutChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("save chat %s: %w", chatID, err)
	}

	r.logger.Info().
		Str("chat_id", chatID).
		Str("user_id", userID).
		Int("members", len(chat.Members)).
		Msg("User joined chat")

	return []notify.Notification{
		notify.GroupAdd(chatID, userID),
		notify.GroupBroadcast(chatID, userName+" has joined the chat").After(r.joinDelay),
	}, nil
}

// LeaveChat removes userID from the chat, deleting the chat when it empties.
// userName may be empty; the member record supplies the announced name then.
//
// Private chats have no record, so leaving one only drops the transport group membership.
func (r *Registry) LeaveChat(ctx context.Context, chatID, userID, userName string) ([]notify.Notification, error) {
	log := r.logger.With().Str("chat_id", chatID).Str("user_id", userID).Logger()

	chat, err := r.store.GetChat(ctx, chatID)
	if errors.Is(err, state.ErrNotFound) {
		if pairing.IsPrivateChatID(chatID) {
			return leaveNotes(chatID, userID, nameOr(userName, userID)), nil
		}
		log.Info().Msg("Leave ignored, chat does not exist")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chat %s: %w", chatID, err)
	}

	member, ok := chat.Members[userID]
	if !ok {
		log.Info().Msg("Leave for a non-member, chat unchanged")
		return leaveNotes(chatID, userID, nameOr(userName, userID)), nil
	}

	delete(chat.Members, userID)
	notes := leaveNotes(chatID, userID, nameOr(userName, nameOr(member.UserName, userID)))

	if len(chat.Members) == 0 {
		if err := r.store.DeleteChat(ctx, chatID); err != nil {
			return nil, fmt.Errorf("delete empty chat %s: %w", chatID, err)
		}
		log.Info().Msg("Last member left, chat deleted")
		return append(notes, notify.BroadcastAll(notify.EventChatDeleted, chatID)), nil
	}

	if err := r.store.PutChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("save chat %s: %w", chatID, err)
	}
	log.Info().Int("members", len(chat.Members)).Msg("User left chat")
	return notes, nil
}

// DeleteChat removes the chat regardless of membership and tells every client.
// There is no ownership check here; callers authorize.
func (r *Registry) DeleteChat(ctx context.Context, chatID string) ([]notify.Notification, error) {
	if err := r.store.DeleteChat(ctx, chatID); err != nil {
		return nil, fmt.Errorf("delete chat %s: %w", chatID, err)
	}

	r.logger.Info().Str("chat_id", chatID).Msg("Chat deleted")
	return []notify.Notification{notify.BroadcastAll(notify.EventChatDeleted, chatID)}, nil
}

// LeaveAllChats removes userID from every chat it belongs to. Chats are visited in id
// order; a failing chat does not stop the others.
func (r *Registry) LeaveAllChats(ctx context.Context, userID string) ([]notify.Notification, error) {
	chats, err := r.store.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	ids := make([]string, 0, len(chats))
	for id, chat := range chats {
		if chat.HasMember(userID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var (
		notes  []notify.Notification
		failed []error
	)
	for _, id := range ids {
		n, err := r.LeaveChat(ctx, id, userID, "")
		if err != nil {
			failed = append(failed, err)
			continue
		}
		notes = append(notes, n...)
	}

	return notes, errors.Join(failed...)
}

func leaveNotes(chatID, userID, userName string) []notify.Notification {
	return []notify.Notification{
		notify.GroupRemove(chatID, userID),
		notify.GroupBroadcast(chatID, userName+" has left the chat"),
	}
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
