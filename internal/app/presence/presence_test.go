package presence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"chatr/internal/app/notify"
	"chatr/internal/app/state"
)

type fakeRooms struct {
	calls []string
	notes []notify.Notification
	err   error
}

func (f *fakeRooms) LeaveAllChats(_ context.Context, userID string) ([]notify.Notification, error) {
	f.calls = append(f.calls, userID)
	return f.notes, f.err
}

func TestMarkOnline(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	tr := NewTracker(store, &fakeRooms{})

	notes, err := tr.MarkOnline(ctx, "alice", "Alice", "github")
	if err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}

	u, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.UserName != "Alice" || u.UserProvider != "github" || u.Idle {
		t.Errorf("stored user = %+v", u)
	}

	if len(notes) != 1 || notes[0].Kind != notify.KindBroadcastAll || notes[0].Event != notify.EventUserOnline {
		t.Fatalf("notes = %v", notes)
	}
	payload, ok := notes[0].Data.(Online)
	if !ok || payload != (Online{UserID: "alice", UserName: "Alice", UserProvider: "github"}) {
		t.Errorf("payload = %#v", notes[0].Data)
	}
}

func TestMarkOnline_PayloadOmitsStoreFields(t *testing.T) {
	tr := NewTracker(state.NewMemoryStore(), &fakeRooms{})

	notes, err := tr.MarkOnline(context.Background(), "alice", "Alice", "aad")
	if err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	b, err := json.Marshal(notes[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"userId":"alice","userName":"Alice","userProvider":"aad","idle":false}` {
		t.Errorf("payload = %s", b)
	}
}

func TestMarkOffline_CascadesAfterAnnouncement(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	rooms := &fakeRooms{notes: []notify.Notification{notify.GroupRemove("c1", "bob")}}
	tr := NewTracker(store, rooms)

	if _, err := tr.MarkOnline(ctx, "bob", "Bob", "aad"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}

	notes, err := tr.MarkOffline(ctx, "bob")
	if err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}

	if _, err := store.GetUser(ctx, "bob"); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("GetUser after offline: err = %v, want ErrNotFound", err)
	}
	if len(rooms.calls) != 1 || rooms.calls[0] != "bob" {
		t.Errorf("LeaveAllChats calls = %v", rooms.calls)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %v, want 2", notes)
	}
	if notes[0].Event != notify.EventUserOffline || notes[0].Data != "bob" {
		t.Errorf("first note = %v", notes[0])
	}
	if notes[1].Kind != notify.KindGroupRemove {
		t.Errorf("second note = %v", notes[1])
	}
}

func TestMarkOffline_Idempotent(t *testing.T) {
	ctx := context.Background()
	rooms := &fakeRooms{}
	tr := NewTracker(state.NewMemoryStore(), rooms)

	for i := 0; i < 2; i++ {
		notes, err := tr.MarkOffline(ctx, "nobody")
		if err != nil {
			t.Fatalf("MarkOffline #%d: %v", i, err)
		}
		if len(notes) != 1 || notes[0].Event != notify.EventUserOffline {
			t.Errorf("MarkOffline #%d notes = %v", i, notes)
		}
	}
	if len(rooms.calls) != 2 {
		t.Errorf("cascade calls = %d, want 2", len(rooms.calls))
	}
}

func TestMarkOffline_KeepsPartialNotesOnCascadeError(t *testing.T) {
	boom := errors.New("boom")
	rooms := &fakeRooms{notes: []notify.Notification{notify.GroupRemove("a", "carol")}, err: boom}
	tr := NewTracker(state.NewMemoryStore(), rooms)

	notes, err := tr.MarkOffline(context.Background(), "carol")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(notes) != 2 {
		t.Errorf("notes = %v, want offline + partial cascade", notes)
	}
}

func TestSetIdle(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	tr := NewTracker(store, &fakeRooms{})

	if _, err := tr.MarkOnline(ctx, "alice", "Alice", "github"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}

	tests := []struct {
		name  string
		user  string
		idle  bool
		event string
	}{
		{"enter idle", "alice", true, notify.EventUserIsIdle},
		{"exit idle", "alice", false, notify.EventUserNotIdle},
		{"unknown user still announces", "ghost", true, notify.EventUserIsIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := tr.SetIdle(ctx, tt.user, tt.idle)
			if err != nil {
				t.Fatalf("SetIdle: %v", err)
			}
			if len(notes) != 1 || notes[0].Event != tt.event || notes[0].Data != tt.user {
				t.Fatalf("notes = %v", notes)
			}
			if u, err := store.GetUser(ctx, tt.user); err == nil && u.Idle != tt.idle {
				t.Errorf("stored idle = %v, want %v", u.Idle, tt.idle)
			}
		})
	}

	if _, err := store.GetUser(ctx, "ghost"); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("SetIdle created a record for an unknown user")
	}
}
