/*
Package cleanup removes user and chat records that have not been written for a while.

Presence records of users whose disconnect was never delivered, and chats nobody left
cleanly, would otherwise live forever. Deletion is silent: nothing is broadcast.
*/
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatr/internal/app/state"
	"chatr/internal/pkg/logx"
)

// DefaultMaxAge is the record age past which a sweep deletes.
const DefaultMaxAge = 24 * time.Hour

// Recorder observes sweep results.
type Recorder interface {
	RecordSweep(users, chats int)
}

type nopRecorder struct{}

func (nopRecorder) RecordSweep(int, int) {}

// Report lists what one sweep removed.
type Report struct {
	Users []string
	Chats []string
}

// Sweeper deletes stale records from a Store.
type Sweeper struct {
	store    state.Store
	now      func() time.Time
	recorder Recorder
	logger   zerolog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithRecorder attaches a sweep metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.recorder = r }
}

// NewSweeper returns a Sweeper over store.
func NewSweeper(store state.Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		now:      time.Now,
		recorder: nopRecorder{},
		logger:   logx.Component("cleanup"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep deletes every user whose LastSeen and every chat whose UpdatedAt is older than
// maxAge. A failed delete is reported and the sweep carries on.
func (s *Sweeper) Sweep(ctx context.Context, maxAge time.Duration) (Report, error) {
	cutoff := s.now().Add(-maxAge)
	var (
		report Report
		failed []error
	)

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}
	for id, u := range users {
		if !u.LastSeen.Before(cutoff) {
			continue
		}
		if err := s.store.DeleteUser(ctx, id); err != nil {
			failed = append(failed, fmt.Errorf("delete user %s: %w", id, err))
			continue
		}
		s.logger.Info().Str("user_id", id).Time("last_seen", u.LastSeen).Msg("Deleted stale user")
		report.Users = append(report.Users, id)
	}

	chats, err := s.store.ListChats(ctx)
	if err != nil {
		return report, errors.Join(append(failed, fmt.Errorf("list chats: %w", err))...)
	}
	for id, c := range chats {
		if !c.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.store.DeleteChat(ctx, id); err != nil {
			failed = append(failed, fmt.Errorf("delete chat %s: %w", id, err))
			continue
		}
		s.logger.Info().Str("chat_id", id).Str("name", c.Name).Time("updated_at", c.UpdatedAt).Msg("Deleted stale chat")
		report.Chats = append(report.Chats, id)
	}

	s.recorder.RecordSweep(len(report.Users), len(report.Chats))
	s.logger.Info().
		Dur("max_age", maxAge).
		Int("users", len(report.Users)).
		Int("chats", len(report.Chats)).
		Msg("Sweep finished")

	return report, errors.Join(failed...)
}

// Run sweeps every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Dur("max_age", maxAge).Msg("Cleanup loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Cleanup loop stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, maxAge); err != nil {
				s.logger.Error().Err(err).Msg("Sweep failed")
			}
		}
	}
}
