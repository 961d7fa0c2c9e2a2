package hub

import (
	"encoding/json"

	"chatr/internal/app/notify"
)

// Frame types on the wire.
const (
	TypeEvent       = "event"
	TypeMessage     = "message"
	TypeSendToGroup = "sendToGroup"
	TypeError       = "error"
	TypeTokenUpdate = "tokenUpdate"
)

// inboundFrame is what a client sends. Event frames carry Event and Data;
// sendToGroup frames carry Group and Data.
type inboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Group string          `json:"group,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is what the server sends.
type Frame struct {
	Type       string `json:"type"`
	ChatEvent  string `json:"chatEvent,omitempty"`
	Group      string `json:"group,omitempty"`
	FromUserID string `json:"fromUserId,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func eventFrame(msg notify.Message) Frame {
	return Frame{Type: TypeEvent, ChatEvent: msg.ChatEvent, Data: msg.Data}
}

// groupFrame carries group text. System announcements have no sender.
func groupFrame(chatID, fromUserID string, data any) Frame {
	return Frame{Type: TypeMessage, Group: chatID, FromUserID: fromUserID, Data: data}
}
