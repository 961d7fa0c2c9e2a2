// Package presence tracks which users are online and whether they are idle.
package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"chatr/internal/app/notify"
	"chatr/internal/app/state"
	"chatr/internal/pkg/logx"
)

// RoomLeaver removes a departing user from every chat. Implemented by rooms.Registry.
type RoomLeaver interface {
	LeaveAllChats(ctx context.Context, userID string) ([]notify.Notification, error)
}

// Online is the userOnline broadcast payload. Store bookkeeping such as LastSeen stays private.
type Online struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserProvider string `json:"userProvider"`
	Idle         bool   `json:"idle"`
}

// Tracker maintains User records. A record exists exactly while the user is online.
type Tracker struct {
	store  state.Store
	rooms  RoomLeaver
	logger zerolog.Logger
}

// NewTracker returns a Tracker that cascades departures through rooms.
func NewTracker(store state.Store, rooms RoomLeaver) *Tracker {
	return &Tracker{
		store:  store,
		rooms:  rooms,
		logger: logx.Component("presence"),
	}
}

// MarkOnline writes the user's presence record and announces it. A second call for an
// already-online user overwrites the record and announces again.
func (t *Tracker) MarkOnline(ctx context.Context, userID, userName, provider string) ([]notify.Notification, error) {
	user := &state.User{
		UserID:       userID,
		UserName:     userName,
		UserProvider: provider,
		Idle:         false,
	}
	if err := t.store.PutUser(ctx, user); err != nil {
		return nil, fmt.Errorf("put user %s: %w", userID, err)
	}

	t.logger.Info().Str("user_id", userID).Str("provider", provider).Msg("User online")

	announced := Online{
		UserID:       user.UserID,
		UserName:     user.UserName,
		UserProvider: user.UserProvider,
		Idle:         user.Idle,
	}
	return []notify.Notification{notify.BroadcastAll(notify.EventUserOnline, announced)}, nil
}

// MarkOffline drops the user's record, announces the departure and removes the user from
// every chat. Calling it for a user that is already offline still announces and cascades,
// so repeated calls converge on the same state.
func (t *Tracker) MarkOffline(ctx context.Context, userID string) ([]notify.Notification, error) {
	log := t.logger.With().Str("user_id", userID).Logger()

	_, err := t.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		if err := t.store.DeleteUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("delete user %s: %w", userID, err)
		}
		log.Info().Msg("User offline")
	case errors.Is(err, state.ErrNotFound):
		log.Debug().Msg("User already offline")
	default:
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	notes := []notify.Notification{notify.BroadcastAll(notify.EventUserOffline, userID)}

	left, err := t.rooms.LeaveAllChats(ctx, userID)
	notes = append(notes, left...)
	if err != nil {
		return notes, fmt.Errorf("leave chats for %s: %w", userID, err)
	}
	return notes, nil
}

// SetIdle flips the user's idle flag. The idle event is emitted even when the user has
// no record; clients treat it as advisory.
func (t *Tracker) SetIdle(ctx context.Context, userID string, idle bool) ([]notify.Notification, error) {
	user, err := t.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		user.Idle = idle
		if err := t.store.PutUser(ctx, user); err != nil {
			return nil, fmt.Errorf("put user %s: %w", userID, err)
		}
	case errors.Is(err, state.ErrNotFound):
		t.logger.Debug().Str("user_id", userID).Bool("idle", idle).Msg("Idle change for unknown user")
	default:
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	event := notify.EventUserNotIdle
	if idle {
		event = notify.EventUserIsIdle
	}
	return []notify.Notification{notify.BroadcastAll(event, userID)}, nil
}
