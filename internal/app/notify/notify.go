/*
Package notify models the outbound instructions the coordination layer sends to the
real-time transport, and delivers them.

Components build []Notification and never call the transport themselves, with one
exception: private chat invites, whose failure must be observed (see package pairing).
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind names a transport capability.
type Kind string

const (
	KindBroadcastAll   Kind = "broadcastAll"
	KindSendToUser     Kind = "sendToUser"
	KindGroupAdd       Kind = "groupAdd"
	KindGroupRemove    Kind = "groupRemove"
	KindGroupBroadcast Kind = "groupBroadcast"
)

// Chat events pushed to clients.
const (
	EventUserOnline      = "userOnline"
	EventUserOffline     = "userOffline"
	EventUserIsIdle      = "userIsIdle"
	EventUserNotIdle     = "userNotIdle"
	EventChatCreated     = "chatCreated"
	EventChatDeleted     = "chatDeleted"
	EventJoinPrivateChat = "joinPrivateChat"
)

// ErrUnreachable is returned by a Transport when the target user has no live session.
var ErrUnreachable = errors.New("notify: user is not connected")

// Message is the payload of BroadcastAll and SendToUser.
type Message struct {
	ChatEvent string `json:"chatEvent"`
	Data      any    `json:"data"`
}

// Transport is the capability surface of the real-time messaging backbone.
type Transport interface {
	BroadcastAll(ctx context.Context, msg Message) error
	SendToUser(ctx context.Context, userID string, msg Message) error
	GroupAdd(ctx context.Context, chatID, userID string) error
	GroupRemove(ctx context.Context, chatID, userID string) error
	GroupBroadcast(ctx context.Context, chatID, text string) error
}

// Notification is one instruction for the transport. Delay > 0 marks a paced,
// best-effort announcement sent after the event has been acknowledged.
type Notification struct {
	Kind   Kind
	Event  string
	UserID string
	ChatID string
	Data   any
	Text   string
	Delay  time.Duration
}

// BroadcastAll builds a notification pushing event to every connected client.
func BroadcastAll(event string, data any) Notification {
	return Notification{Kind: KindBroadcastAll, Event: event, Data: data}
}

// SendToUser builds a notification pushing event to every session of userID.
func SendToUser(userID, event string, data any) Notification {
	return Notification{Kind: KindSendToUser, UserID: userID, Event: event, Data: data}
}

// GroupAdd builds a notification adding userID to the chatID group.
func GroupAdd(chatID, userID string) Notification {
	return Notification{Kind: KindGroupAdd, ChatID: chatID, UserID: userID}
}

// GroupRemove builds a notification removing userID from the chatID group.
func GroupRemove(chatID, userID string) Notification {
	return Notification{Kind: KindGroupRemove, ChatID: chatID, UserID: userID}
}

// GroupBroadcast builds a notification sending text to every member of the chatID group.
func GroupBroadcast(chatID, text string) Notification {
	return Notification{Kind: KindGroupBroadcast, ChatID: chatID, Text: text}
}

// After returns a copy of n scheduled d after delivery starts.
func (n Notification) After(d time.Duration) Notification {
	n.Delay = d
	return n
}

func (n Notification) String() string {
	switch n.Kind {
	case KindBroadcastAll:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Event)
	case KindSendToUser:
		return fmt.Sprintf("%s(%s, %s)", n.Kind, n.UserID, n.Event)
	case KindGroupBroadcast:
		return fmt.Sprintf("%s(%s, %q)", n.Kind, n.ChatID, n.Text)
	default:
		return fmt.Sprintf("%s(%s, %s)", n.Kind, n.ChatID, n.UserID)
	}
}

// DeliveryError reports a notification the transport failed to carry out.
// State was already committed; the failure is logged and never rolled back.
type DeliveryError struct {
	Notification Notification
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.Notification, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// send maps a notification onto the transport call it stands for.
func send(ctx context.Context, t Transport, n Notification) error {
	switch n.Kind {
	case KindBroadcastAll:
		return t.BroadcastAll(ctx, Message{ChatEvent: n.Event, Data: n.Data})
	case KindSendToUser:
		return t.SendToUser(ctx, n.UserID, Message{ChatEvent: n.Event, Data: n.Data})
	case KindGroupAdd:
		return t.GroupAdd(ctx, n.ChatID, n.UserID)
	case KindGroupRemove:
		return t.GroupRemove(ctx, n.ChatID, n.UserID)
	case KindGroupBroadcast:
		return t.GroupBroadcast(ctx, n.ChatID, n.Text)
	default:
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}
