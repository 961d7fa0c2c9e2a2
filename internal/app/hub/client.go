package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatr/internal/app/events"
	"chatr/internal/pkg/errs"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// eventTimeout bounds the handling of one client event.
	eventTimeout = 10 * time.Second

	// TokenRefreshWindow defines how long before expiry a fresh token is pushed.
	TokenRefreshWindow = 2 * time.Minute
)

// Client is one WebSocket connection of a user. A user may hold several.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// id distinguishes this connection in logs.
	id string

	userID string

	// tokenExpiry records the expiration time of the token the session was opened with.
	tokenExpiry time.Time

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	closeOnce sync.Once

	logger zerolog.Logger
}

func newClient(h *Hub, conn *websocket.Conn, userID string, tokenExpiry time.Time) *Client {
	id := uuid.NewString()
	return &Client{
		hub:         h,
		conn:        conn,
		id:          id,
		userID:      userID,
		tokenExpiry: tokenExpiry,
		send:        make(chan []byte, 256),
		logger: h.logger.With().
			Str("conn_id", id).
			Str("user_id", userID).
			Logger(),
	}
}

// ReadPump reads frames until the connection fails, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.closeConn()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		c.processInbound(data)
	}
}

func (c *Client) processInbound(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	switch frame.Type {
	case TypeEvent:
		if frame.Event == "" {
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		// Only the hub knows when a user is really gone.
		if frame.Event == events.NameDisconnected {
			c.SendError(errs.NewError(errs.ErrEventNotAllowed, frame.Event))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.hub.handleEvent(ctx, c, frame.Event, frame.Data)
		cancel()

	case TypeSendToGroup:
		if frame.Group == "" {
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		if !c.hub.relay(c, frame.Group, frame.Data) {
			c.SendError(errs.NewError(errs.ErrNotChatMember, frame.Group))
		}

	default:
		c.logger.Warn().Str("frame_type", frame.Type).Msg("Client sent unsupported frame type")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
	}
}

// WritePump writes queued frames and heartbeats until the queue closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueued(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
			c.checkAndRefreshToken()
		}
	}
}

// writeQueued returns false when the pump should stop.
func (c *Client) writeQueued(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// checkAndRefreshToken pushes a fresh token when the current one is close to expiry.
func (c *Client) checkAndRefreshToken() {
	if c.hub.issuer == nil || c.tokenExpiry.IsZero() {
		return
	}
	if time.Now().Before(c.tokenExpiry.Add(-TokenRefreshWindow)) {
		return
	}

	c.logger.Info().Time("current_expiry", c.tokenExpiry).Msg("Token is nearing expiry, refreshing")

	token, expiry, err := c.hub.issuer(c.userID)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to generate new token. Aborting refresh.")
		return
	}

	c.hub.sendTo(c, Frame{Type: TypeTokenUpdate, Data: map[string]string{"token": token}})
	c.tokenExpiry = expiry
}

// SendError queues an error frame for this connection.
func (c *Client) SendError(err *errs.CustomError) {
	c.hub.sendTo(c, Frame{Type: TypeError, Data: ErrorPayload{Code: err.Code, Message: err.Message}})
}

// enqueue never blocks; a client that cannot keep up loses frames. Callers hold hub.mu.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
	}
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}
	})
}
