/*
Package events decodes inbound event envelopes and routes them to the presence, room and
pairing components.

Bodies arrive in three shapes depending on the event: a JSON object, a JSON-encoded string,
or bare text. Text payloads accept both of the latter.
*/
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound event names.
const (
	NameUserConnected     = "userConnected"
	NameDisconnected      = "disconnected"
	NameUserEnterIdle     = "userEnterIdle"
	NameUserExitIdle      = "userExitIdle"
	NameCreateChat        = "createChat"
	NameJoinChat          = "joinChat"
	NameLeaveChat         = "leaveChat"
	NameDeleteChat        = "deleteChat"
	NameCreatePrivateChat = "createPrivateChat"
)

// ErrMalformedPayload is wrapped by Decode when a body cannot be read for its event.
var ErrMalformedPayload = errors.New("events: malformed payload")

// Envelope is one inbound event as delivered by the transport or the webhook.
type Envelope struct {
	EventName    string
	OriginUserID string
	Body         []byte
}

// UserConnected is the userConnected payload.
type UserConnected struct {
	UserName     string `json:"userName"`
	UserProvider string `json:"userProvider"`
}

// CreateChat is the createChat payload. The owner is the origin user.
type CreateChat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LeaveChat is the leaveChat payload. A bare chat id is also accepted.
type LeaveChat struct {
	ChatID   string `json:"chatId"`
	UserName string `json:"userName"`
}

// CreatePrivateChat is the createPrivateChat payload.
type CreatePrivateChat struct {
	InitiatorUserID string `json:"initiatorUserId"`
	TargetUserID    string `json:"targetUserId"`
}

// Known reports whether name is a routed event.
func Known(name string) bool {
	switch name {
	case NameUserConnected, NameDisconnected, NameUserEnterIdle, NameUserExitIdle,
		NameCreateChat, NameJoinChat, NameLeaveChat, NameDeleteChat, NameCreatePrivateChat:
		return true
	}
	return false
}

// Decode parses env.Body for env.EventName. Unknown events decode to nil.
// Text payloads come back as string.
func Decode(env Envelope) (any, error) {
	switch env.EventName {
	case NameDisconnected:
		return nil, nil

	case NameUserConnected:
		var p UserConnected
		if err := decodeObject(env.Body, &p); err != nil {
			return nil, err
		}
		return p, nil

	case NameUserEnterIdle, NameUserExitIdle:
		id, err := decodeText(env.Body)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = env.OriginUserID
		}
		return id, nil

	case NameCreateChat:
		var p CreateChat
		if err := decodeObject(env.Body, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: createChat without id", ErrMalformedPayload)
		}
		return p, nil

	case NameJoinChat, NameDeleteChat:
		id, err := decodeText(env.Body)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, fmt.Errorf("%w: %s without chat id", ErrMalformedPayload, env.EventName)
		}
		return id, nil

	case NameLeaveChat:
		var p LeaveChat
		if isObject(env.Body) {
			if err := decodeObject(env.Body, &p); err != nil {
				return nil, err
			}
		} else {
			id, err := decodeText(env.Body)
			if err != nil {
				return nil, err
			}
			p.ChatID = id
		}
		if p.ChatID == "" {
			return nil, fmt.Errorf("%w: leaveChat without chat id", ErrMalformedPayload)
		}
		return p, nil

	case NameCreatePrivateChat:
		var p CreatePrivateChat
		if err := decodeObject(env.Body, &p); err != nil {
			return nil, err
		}
		if p.InitiatorUserID == "" {
			p.InitiatorUserID = env.OriginUserID
		}
		if p.TargetUserID == "" {
			return nil, fmt.Errorf("%w: createPrivateChat without target", ErrMalformedPayload)
		}
		return p, nil
	}

	return nil, nil
}

func isObject(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) > 0 && b[0] == '{'
}

func decodeObject(body []byte, v any) error {
	b := bytes.TrimSpace(body)

	// Some senders double-encode objects as a JSON string.
	if len(b) > 0 && b[0] == '"' {
		var inner string
		if err := json.Unmarshal(b, &inner); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		b = []byte(inner)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func decodeText(body []byte) (string, error) {
	b := bytes.TrimSpace(body)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return strings.TrimSpace(s), nil
	}
	return string(b), nil
}
