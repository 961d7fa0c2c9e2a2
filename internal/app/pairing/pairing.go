/*
Package pairing resolves two-party private chats.

A private chat id is a pure function of the two participant ids, so either user can start
the chat and both land in the same room without a registry of pairs. Private rooms live
only at the transport layer: no Chat record is written for them.
*/
package pairing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatr/internal/app/notify"
	"chatr/internal/app/state"
	"chatr/internal/pkg/logx"
)

// PrivatePrefix starts every private chat id.
const PrivatePrefix = "private_"

// DefaultAnnounceDelay paces the "wants to chat" announcement behind the invites.
const DefaultAnnounceDelay = 500 * time.Millisecond

// PrivateChatID returns the canonical room id for a and b, independent of argument order.
func PrivateChatID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return PrivatePrefix + a + "_" + b
}

// IsPrivateChatID reports whether chatID names a private chat.
func IsPrivateChatID(chatID string) bool {
	return strings.HasPrefix(chatID, PrivatePrefix)
}

// Invite is the joinPrivateChat payload sent to each side.
type Invite struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	GrabFocus bool   `json:"grabFocus"`
}

// OfflineMarker takes an unreachable user offline. Implemented by presence.Tracker.
type OfflineMarker interface {
	MarkOffline(ctx context.Context, userID string) ([]notify.Notification, error)
}

// Resolver runs the private chat invite flow.
type Resolver struct {
	users         state.Store
	transport     notify.Transport
	presence      OfflineMarker
	announceDelay time.Duration
	logger        zerolog.Logger
}

// NewResolver builds a Resolver. It calls transport directly for the invites because a
// failed invite must trigger a presence correction.
func NewResolver(users state.Store, transport notify.Transport, presence OfflineMarker, announceDelay time.Duration) *Resolver {
	return &Resolver{
		users:         users,
		transport:     transport,
		presence:      presence,
		announceDelay: announceDelay,
		logger:        logx.Component("pairing"),
	}
}

// InitiatePrivateChat invites the target, then the initiator, into their private room.
// The two sides fail independently: an unreachable side is marked offline and skipped.
// The returned notifications are the offline corrections plus, when both invites
// succeeded, the delayed "wants to chat" announcement.
func (r *Resolver) InitiatePrivateChat(ctx context.Context, initiatorID, targetID string) ([]notify.Notification, error) {
	if initiatorID == targetID {
		r.logger.Warn().Str("user_id", initiatorID).Msg("Ignoring private chat with self")
		return nil, nil
	}

	chatID := PrivateChatID(initiatorID, targetID)
	log := r.logger.With().Str("chat_id", chatID).Logger()

	initiator, err := r.lookup(ctx, initiatorID)
	if err != nil {
		return nil, err
	}
	target, err := r.lookup(ctx, targetID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("initiator_id", initiatorID).Str("target_id", targetID).Msg("Starting private chat")

	var notes []notify.Notification

	targetOK, corrections, err := r.invite(ctx, chatID, targetID, target, Invite{
		ID:        chatID,
		Name:      "Chat with " + displayName(initiator, initiatorID),
		GrabFocus: false,
	})
	notes = append(notes, corrections...)
	if err != nil {
		return notes, err
	}

	initiatorOK, corrections, err := r.invite(ctx, chatID, initiatorID, initiator, Invite{
		ID:        chatID,
		Name:      "Chat with " + displayName(target, targetID),
		GrabFocus: true,
	})
	notes = append(notes, corrections...)
	if err != nil {
		return notes, err
	}

	if targetOK && initiatorOK {
		text := displayName(initiator, initiatorID) + " wants to chat"
		notes = append(notes, notify.GroupBroadcast(chatID, text).After(r.announceDelay))
	}

	return notes, nil
}

// invite adds one side to the group and sends it the joinPrivateChat event.
// On failure the side is marked offline; only a store error from that correction is returned.
func (r *Resolver) invite(ctx context.Context, chatID, userID string, user *state.User, inv Invite) (bool, []notify.Notification, error) {
	err := r.sendInvite(ctx, chatID, userID, user, inv)
	if err == nil {
		return true, nil, nil
	}

	r.logger.Warn().Err(err).
		Str("chat_id", chatID).
		Str("user_id", userID).
		Msg("Private chat party unreachable, removing user")

	notes, mErr := r.presence.MarkOffline(ctx, userID)
	if mErr != nil {
		return false, notes, fmt.Errorf("mark unreachable user %s offline: %w", userID, mErr)
	}
	return false, notes, nil
}

func (r *Resolver) sendInvite(ctx context.Context, chatID, userID string, user *state.User, inv Invite) error {
	if user == nil {
		return fmt.Errorf("%w: no presence record for %s", notify.ErrUnreachable, userID)
	}
	if err := r.transport.GroupAdd(ctx, chatID, userID); err != nil {
		return err
	}
	return r.transport.SendToUser(ctx, userID, notify.Message{ChatEvent: notify.EventJoinPrivateChat, Data: inv})
}

// lookup returns nil without error for a user that is not online.
func (r *Resolver) lookup(ctx context.Context, userID string) (*state.User, error) {
	u, err := r.users.GetUser(ctx, userID)
	if errors.Is(err, state.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return u, nil
}

func displayName(u *state.User, fallback string) string {
	if u == nil || u.UserName == "" {
		return fallback
	}
	return u.UserName
}
