// Package notifytest provides a recording notify.Transport for tests.
package notifytest

import (
	"context"
	"fmt"
	"sync"

	"chatr/internal/app/notify"
)

// Call is one recorded transport invocation.
type Call struct {
	Kind   notify.Kind
	UserID string
	ChatID string
	Msg    notify.Message
	Text   string
}

// Transport records every call. Users listed in Unreachable fail GroupAdd and
// SendToUser with notify.ErrUnreachable; Fail makes every call fail.
type Transport struct {
	mu          sync.Mutex
	calls       []Call
	Unreachable map[string]bool
	Fail        error
}

// New returns an empty recording transport.
func New() *Transport {
	return &Transport{Unreachable: make(map[string]bool)}
}

func (t *Transport) record(c Call) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, c)
	if t.Fail != nil {
		return t.Fail
	}
	if (c.Kind == notify.KindGroupAdd || c.Kind == notify.KindSendToUser) && t.Unreachable[c.UserID] {
		return fmt.Errorf("%w: %s", notify.ErrUnreachable, c.UserID)
	}
	return nil
}

func (t *Transport) BroadcastAll(_ context.Context, msg notify.Message) error {
	return t.record(Call{Kind: notify.KindBroadcastAll, Msg: msg})
}

func (t *Transport) SendToUser(_ context.Context, userID string, msg notify.Message) error {
	return t.record(Call{Kind: notify.KindSendToUser, UserID: userID, Msg: msg})
}

func (t *Transport) GroupAdd(_ context.Context, chatID, userID string) error {
	return t.record(Call{Kind: notify.KindGroupAdd, ChatID: chatID, UserID: userID})
}

func (t *Transport) GroupRemove(_ context.Context, chatID, userID string) error {
	return t.record(Call{Kind: notify.KindGroupRemove, ChatID: chatID, UserID: userID})
}

func (t *Transport) GroupBroadcast(_ context.Context, chatID, text string) error {
	return t.record(Call{Kind: notify.KindGroupBroadcast, ChatID: chatID, Text: text})
}

// Calls returns a snapshot of the recorded calls.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Count returns how many BroadcastAll calls carried chatEvent.
func (t *Transport) Count(chatEvent string) int {
	n := 0
	for _, c := range t.Calls() {
		if c.Kind == notify.KindBroadcastAll && c.Msg.ChatEvent == chatEvent {
			n++
		}
	}
	return n
}

// Reset drops the recorded calls.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}
