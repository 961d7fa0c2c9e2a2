package events

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"chatr/internal/app/notify"
	"chatr/internal/app/rooms"
	"chatr/internal/app/state"
	"chatr/internal/pkg/logx"
)

// Status is the acknowledgment returned for every event.
type Status string

const (
	StatusOK      Status = "ok"
	StatusIgnored Status = "ignored"
)

// Result is the outcome of one dispatched event.
type Result struct {
	Status        Status
	Notifications []notify.Notification
}

// Presence is the subset of presence.Tracker used here.
type Presence interface {
	MarkOnline(ctx context.Context, userID, userName, provider string) ([]notify.Notification, error)
	MarkOffline(ctx context.Context, userID string) ([]notify.Notification, error)
	SetIdle(ctx context.Context, userID string, idle bool) ([]notify.Notification, error)
}

// Rooms is the subset of rooms.Registry used here.
type Rooms interface {
	CreateChat(ctx context.Context, chatID, name, ownerID string) ([]notify.Notification, error)
	JoinChat(ctx context.Context, chatID, userID, userName string) ([]notify.Notification, error)
	LeaveChat(ctx context.Context, chatID, userID, userName string) ([]notify.Notification, error)
	DeleteChat(ctx context.Context, chatID string) ([]notify.Notification, error)
}

// Pairing is the subset of pairing.Resolver used here.
type Pairing interface {
	InitiatePrivateChat(ctx context.Context, initiatorID, targetID string) ([]notify.Notification, error)
}

// UserLookup resolves display names for joinChat.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*state.User, error)
}

// Recorder observes dispatched events.
type Recorder interface {
	RecordEvent(event, status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(string, string) {}

// Dispatcher routes envelopes and delivers the resulting notifications. It holds no
// state beyond an in-flight guard for disconnect cascades.
type Dispatcher struct {
	presence  Presence
	rooms     Rooms
	pairing   Pairing
	users     UserLookup
	deliverer *notify.Deliverer
	recorder  Recorder
	logger    zerolog.Logger

	offline singleflight.Group
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithEventRecorder attaches an event metrics recorder.
func WithEventRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher wires the components together.
func NewDispatcher(p Presence, r Rooms, pr Pairing, users UserLookup, deliverer *notify.Deliverer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		presence:  p,
		rooms:     r,
		pairing:   pr,
		users:     users,
		deliverer: deliverer,
		recorder:  nopRecorder{},
		logger:    logx.Component("events"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one event end to end. Unknown events and unusable payloads are
// acknowledged with StatusIgnored. The error is non-nil only for store failures;
// notifications produced before the failure are still delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) (Result, error) {
	log := d.logger.With().
		Str("event_name", env.EventName).
		Str("origin_user_id", env.OriginUserID).
		Logger()

	res, err := d.route(ctx, env, log)

	label := env.EventName
	if !Known(label) {
		label = "unknown"
	}
	status := string(res.Status)
	if err != nil {
		status = "error"
		log.Error().Err(err).Msg("Event handling failed")
	}
	d.recorder.RecordEvent(label, status)

	return res, err
}

func (d *Dispatcher) route(ctx context.Context, env Envelope, log zerolog.Logger) (Result, error) {
	if !Known(env.EventName) {
		log.Info().Msg("Ignoring unknown event")
		return Result{Status: StatusIgnored}, nil
	}

	payload, err := Decode(env)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring event with unusable payload")
		return Result{Status: StatusIgnored}, nil
	}

	if env.OriginUserID == "" && !hasExplicitInitiator(payload) {
		log.Warn().Msg("Ignoring event without origin user")
		return Result{Status: StatusIgnored}, nil
	}

	if env.EventName == NameDisconnected {
		return d.disconnect(ctx, env.OriginUserID)
	}

	var notes []notify.Notification
	switch p := payload.(type) {
	case UserConnected:
		notes, err = d.presence.MarkOnline(ctx, env.OriginUserID, p.UserName, p.UserProvider)

	case CreateChat:
		notes, err = d.rooms.CreateChat(ctx, p.ID, p.Name, env.OriginUserID)
		if errors.Is(err, rooms.ErrDuplicateChat) || errors.Is(err, rooms.ErrReservedChatID) {
			log.Warn().Err(err).Str("chat_id", p.ID).Msg("Chat not created")
			return Result{Status: StatusIgnored}, nil
		}

	case LeaveChat:
		notes, err = d.rooms.LeaveChat(ctx, p.ChatID, env.OriginUserID, p.UserName)

	case CreatePrivateChat:
		notes, err = d.pairing.InitiatePrivateChat(ctx, p.InitiatorUserID, p.TargetUserID)

	case string:
		notes, err = d.routeText(ctx, env, p)
	}

	d.deliver(ctx, notes, log)
	return Result{Status: StatusOK, Notifications: notes}, err
}

// hasExplicitInitiator reports whether a private chat request names its initiator, the
// only case where an event can act without an origin user.
func hasExplicitInitiator(payload any) bool {
	p, ok := payload.(CreatePrivateChat)
	return ok && p.InitiatorUserID != ""
}

func (d *Dispatcher) routeText(ctx context.Context, env Envelope, text string) ([]notify.Notification, error) {
	switch env.EventName {
	case NameUserEnterIdle:
		return d.presence.SetIdle(ctx, text, true)
	case NameUserExitIdle:
		return d.presence.SetIdle(ctx, text, false)
	case NameJoinChat:
		name, err := d.displayName(ctx, env.OriginUserID)
		if err != nil {
			return nil, err
		}
		return d.rooms.JoinChat(ctx, text, env.OriginUserID, name)
	case NameDeleteChat:
		return d.rooms.DeleteChat(ctx, text)
	}
	return nil, nil
}

// disconnect collapses concurrent deliveries for the same user into one cascade.
// Delivery happens inside the flight so waiters do not resend the notifications.
func (d *Dispatcher) disconnect(ctx context.Context, userID string) (Result, error) {
	log := d.logger.With().Str("user_id", userID).Logger()

	v, err, shared := d.offline.Do(userID, func() (any, error) {
		notes, err := d.presence.MarkOffline(ctx, userID)
		d.deliver(ctx, notes, log)
		return notes, err
	})
	if shared {
		log.Debug().Msg("Joined an in-flight disconnect")
	}

	notes, _ := v.([]notify.Notification)
	return Result{Status: StatusOK, Notifications: notes}, err
}

func (d *Dispatcher) displayName(ctx context.Context, userID string) (string, error) {
	u, err := d.users.GetUser(ctx, userID)
	if errors.Is(err, state.ErrNotFound) {
		return userID, nil
	}
	if err != nil {
		return "", err
	}
	if u.UserName == "" {
		return userID, nil
	}
	return u.UserName, nil
}

func (d *Dispatcher) deliver(ctx context.Context, notes []notify.Notification, log zerolog.Logger) {
	if len(notes) == 0 {
		return
	}
	if err := d.deliverer.Deliver(ctx, notes); err != nil {
		log.Warn().Err(err).Int("notifications", len(notes)).Msg("Some notifications were not delivered")
	}
}
