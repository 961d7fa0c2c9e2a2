/*
Package hub is the WebSocket transport: it tracks live connections per user and group
membership per chat, carries notifications to clients, and turns client frames into events.

Group membership here is connection-level routing only. The durable membership is the
chat record; the hub learns about it through GroupAdd and GroupRemove notifications.
*/
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatr/internal/app/events"
	"chatr/internal/app/notify"
	"chatr/internal/pkg/logx"
)

// DisconnectTimeout bounds the disconnect cascade run when a user's last socket closes.
const DisconnectTimeout = 10 * time.Second

// EventHandler consumes inbound events. Implemented by events.Dispatcher.
type EventHandler interface {
	Dispatch(ctx context.Context, env events.Envelope) (events.Result, error)
}

// Recorder observes connection counts.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened() {}
func (nopRecorder) ConnectionClosed() {}

// TokenIssuer mints a fresh client token for userID and reports its expiry.
type TokenIssuer func(userID string) (token string, expiry time.Time, err error)

// Hub routes frames between connections. It implements notify.Transport.
type Hub struct {
	// mu guards users, groups and closing. Sends to a client's queue happen under
	// the read lock; the queue is closed under the write lock.
	mu      sync.RWMutex
	users   map[string]map[*Client]struct{}
	groups  map[string]map[string]struct{}
	closing bool

	handler  EventHandler
	recorder Recorder
	issuer   TokenIssuer

	wg     sync.WaitGroup
	logger zerolog.Logger
}

var _ notify.Transport = (*Hub)(nil)

// Option configures a Hub.
type Option func(*Hub)

// WithRecorder attaches a connection metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

// WithTokenRefresh makes clients receive a fresh token before theirs expires.
func WithTokenRefresh(issuer TokenIssuer) Option {
	return func(h *Hub) { h.issuer = issuer }
}

// New returns an empty Hub. SetHandler must be called before serving connections.
func New(opts ...Option) *Hub {
	h := &Hub{
		users:    make(map[string]map[*Client]struct{}),
		groups:   make(map[string]map[string]struct{}),
		recorder: nopRecorder{},
		logger:   logx.Component("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetHandler installs the inbound event handler. The dispatcher needs the hub as its
// transport, so the two are wired after construction.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// Serve runs a connection for userID until it closes. It blocks.
func (h *Hub) Serve(conn *websocket.Conn, userID string, tokenExpiry time.Time) {
	c := newClient(h, conn, userID, tokenExpiry)
	if !h.register(c) {
		c.logger.Warn().Msg("Hub is shutting down, refusing connection")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go c.WritePump()
	c.ReadPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return false
	}

	conns, ok := h.users[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.users[c.userID] = conns
	}
	conns[c] = struct{}{}
	h.wg.Add(1)
	h.recorder.ConnectionOpened()

	c.logger.Info().Int("user_connections", len(conns)).Msg("Client connected")
	return true
}

// unregister drops c and, when it was the user's last connection, removes the user from
// every group and dispatches a disconnected event.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	conns, ok := h.users[c.userID]
	if _, registered := conns[c]; !ok || !registered {
		h.mu.Unlock()
		return
	}

	delete(conns, c)
	close(c.send)
	last := len(conns) == 0
	if last {
		delete(h.users, c.userID)
		for chatID, members := range h.groups {
			delete(members, c.userID)
			if len(members) == 0 {
				delete(h.groups, chatID)
			}
		}
	}
	closing := h.closing
	h.mu.Unlock()

	h.recorder.ConnectionClosed()
	defer h.wg.Done()

	c.logger.Info().Bool("last_connection", last).Msg("Client disconnected")

	if last && !closing {
		h.dispatchDisconnect(c.userID)
	}
}

func (h *Hub) dispatchDisconnect(userID string) {
	if h.handler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), DisconnectTimeout)
	defer cancel()

	if _, err := h.handler.Dispatch(ctx, events.Envelope{EventName: events.NameDisconnected, OriginUserID: userID}); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Disconnect cascade failed")
	}
}

// handleEvent forwards a client event to the handler with the connection's user as origin.
func (h *Hub) handleEvent(ctx context.Context, c *Client, name string, data json.RawMessage) {
	if h.handler == nil {
		c.logger.Error().Msg("No event handler installed, dropping event")
		return
	}

	res, err := h.handler.Dispatch(ctx, events.Envelope{EventName: name, OriginUserID: c.userID, Body: data})
	if err != nil {
		c.logger.Error().Err(err).Str("event_name", name).Msg("Event failed")
		return
	}
	c.logger.Debug().Str("event_name", name).Str("status", string(res.Status)).Msg("Event handled")
}

// relay sends data from c's user to the other members of chatID.
func (h *Hub) relay(c *Client, chatID string, data json.RawMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.groups[chatID]
	if _, ok := members[c.userID]; !ok {
		return false
	}

	frame, err := json.Marshal(groupFrame(chatID, c.userID, data))
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode group message")
		return true
	}
	for userID := range members {
		if userID == c.userID {
			continue
		}
		h.sendToUserLocked(userID, frame)
	}
	return true
}

// MembersOf reports the users currently routed to chatID.
func (h *Hub) MembersOf(chatID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.groups[chatID]))
	for id := range h.groups[chatID] {
		out = append(out, id)
	}
	return out
}

// Connected reports whether userID has at least one live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

func (h *Hub) BroadcastAll(_ context.Context, msg notify.Message) error {
	frame, err := json.Marshal(eventFrame(msg))
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.ChatEvent, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID := range h.users {
		h.sendToUserLocked(userID, frame)
	}
	return nil
}

func (h *Hub) SendToUser(_ context.Context, userID string, msg notify.Message) error {
	frame, err := json.Marshal(eventFrame(msg))
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.ChatEvent, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.users[userID]) == 0 {
		return fmt.Errorf("%w: %s", notify.ErrUnreachable, userID)
	}
	h.sendToUserLocked(userID, frame)
	return nil
}

func (h *Hub) GroupAdd(_ context.Context, chatID, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.users[userID]) == 0 {
		return fmt.Errorf("%w: %s", notify.ErrUnreachable, userID)
	}
	members, ok := h.groups[chatID]
	if !ok {
		members = make(map[string]struct{})
		h.groups[chatID] = members
	}
	members[userID] = struct{}{}
	return nil
}

func (h *Hub) GroupRemove(_ context.Context, chatID, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[chatID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(h.groups, chatID)
		}
	}
	return nil
}

func (h *Hub) GroupBroadcast(_ context.Context, chatID, text string) error {
	frame, err := json.Marshal(groupFrame(chatID, "", text))
	if err != nil {
		return fmt.Errorf("encode group text: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID := range h.groups[chatID] {
		h.sendToUserLocked(userID, frame)
	}
	return nil
}

// sendToUserLocked queues frame on every connection of userID. Callers hold mu.
func (h *Hub) sendToUserLocked(userID string, frame []byte) {
	for c := range h.users[userID] {
		c.enqueue(frame)
	}
}

// sendTo queues a frame for one connection if it is still registered.
func (h *Hub) sendTo(c *Client, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling frame for client")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.users[c.userID][c]; ok {
		c.enqueue(frame)
	}
}

// Shutdown closes every connection and waits for their pumps to finish or ctx to end.
// Users are not taken offline: records left behind age out through the cleanup sweep.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	var all []*Client
	for _, conns := range h.users {
		for c := range conns {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	h.logger.Info().Int("connections", len(all)).Msg("Shutting down hub")

	for _, c := range all {
		c.closeConn()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("Hub shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
