package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chatr/internal/pkg/logx"
)

// DefaultScheduledTimeout bounds a delayed announcement's transport call.
const DefaultScheduledTimeout = 5 * time.Second

// Recorder observes delivery outcomes. A nil error is a success.
type Recorder interface {
	RecordNotification(kind string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordNotification(string, error) {}

// Deliverer sends notifications to a Transport in order.
type Deliverer struct {
	transport Transport
	recorder  Recorder
	logger    zerolog.Logger

	// schedule runs f after d. Tests replace it to run announcements inline.
	schedule func(d time.Duration, f func())
	timeout  time.Duration
}

// Option configures a Deliverer.
type Option func(*Deliverer)

// WithRecorder attaches a delivery metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Deliverer) { d.recorder = r }
}

// WithScheduler replaces time.AfterFunc for delayed notifications.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(d *Deliverer) { d.schedule = schedule }
}

// NewDeliverer builds a Deliverer on top of t.
func NewDeliverer(t Transport, opts ...Option) *Deliverer {
	d := &Deliverer{
		transport: t,
		recorder:  nopRecorder{},
		logger:    logx.Component("notify"),
		schedule:  func(delay time.Duration, f func()) { time.AfterFunc(delay, f) },
		timeout:   DefaultScheduledTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends immediate notifications synchronously, in slice order, and schedules
// delayed ones on a detached context. A failed notification does not stop the rest.
// The returned error joins the *DeliveryError of every immediate failure; callers
// log it and still acknowledge the event.
func (d *Deliverer) Deliver(ctx context.Context, notes []Notification) error {
	var failed []error

	for _, n := range notes {
		if n.Delay > 0 {
			d.scheduleLater(n)
			continue
		}
		if err := d.deliverOne(ctx, n); err != nil {
			failed = append(failed, err)
		}
	}

	return errors.Join(failed...)
}

func (d *Deliverer) scheduleLater(n Notification) {
	d.schedule(n.Delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		_ = d.deliverOne(ctx, n)
	})
}

func (d *Deliverer) deliverOne(ctx context.Context, n Notification) error {
	err := send(ctx, d.transport, n)
	d.recorder.RecordNotification(string(n.Kind), err)

	if err != nil {
		derr := &DeliveryError{Notification: n, Err: err}
		d.logger.Warn().Err(err).Stringer("notification", n).Msg("Notification delivery failed")
		return derr
	}

	d.logger.Debug().Stringer("notification", n).Msg("Notification delivered")
	return nil
}
