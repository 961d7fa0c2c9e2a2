package state

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"chatr/internal/app/db"
)

// runStoreContract checks the behavior every backend must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("missing records", func(t *testing.T) {
		s := newStore(t)

		if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUser err = %v, want ErrNotFound", err)
		}
		if _, err := s.GetChat(ctx, "nothing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetChat err = %v, want ErrNotFound", err)
		}
		if err := s.DeleteUser(ctx, "nobody"); err != nil {
			t.Errorf("DeleteUser on missing record: %v", err)
		}
		if err := s.DeleteChat(ctx, "nothing"); err != nil {
			t.Errorf("DeleteChat on missing record: %v", err)
		}
	})

	t.Run("user round trip", func(t *testing.T) {
		s := newStore(t)

		in := &User{UserID: "alice", UserName: "Alice", UserProvider: "github", Idle: true}
		if err := s.PutUser(ctx, in); err != nil {
			t.Fatalf("PutUser: %v", err)
		}
		if in.LastSeen.IsZero() {
			t.Error("PutUser did not stamp LastSeen")
		}

		got, err := s.GetUser(ctx, "alice")
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if got.UserName != "Alice" || got.UserProvider != "github" || !got.Idle {
			t.Errorf("GetUser = %+v", got)
		}

		users, err := s.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers: %v", err)
		}
		if len(users) != 1 || users["alice"] == nil {
			t.Errorf("ListUsers = %v", users)
		}

		if err := s.DeleteUser(ctx, "alice"); err != nil {
			t.Fatalf("DeleteUser: %v", err)
		}
		if _, err := s.GetUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUser after delete err = %v", err)
		}
	})

	t.Run("chat round trip", func(t *testing.T) {
		s := newStore(t)

		in := NewChat("c1", "Team", "alice")
		in.Members["bob"] = Member{UserID: "bob", UserName: "Bob"}
		if err := s.PutChat(ctx, in); err != nil {
			t.Fatalf("PutChat: %v", err)
		}

		got, err := s.GetChat(ctx, "c1")
		if err != nil {
			t.Fatalf("GetChat: %v", err)
		}
		if got.ID != "c1" || got.Name != "Team" || got.Owner != "alice" {
			t.Errorf("GetChat = %+v", got)
		}
		if m, ok := got.Members["bob"]; !ok || m.UserName != "Bob" {
			t.Errorf("Members = %v", got.Members)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt not populated")
		}

		// Mutating the returned copy does not touch the stored record.
		delete(got.Members, "bob")
		again, err := s.GetChat(ctx, "c1")
		if err != nil {
			t.Fatalf("GetChat: %v", err)
		}
		if !again.HasMember("bob") {
			t.Error("stored chat changed without a PutChat")
		}

		chats, err := s.ListChats(ctx)
		if err != nil {
			t.Fatalf("ListChats: %v", err)
		}
		if len(chats) != 1 || !chats["c1"].HasMember("bob") {
			t.Errorf("ListChats = %v", chats)
		}

		if err := s.DeleteChat(ctx, "c1"); err != nil {
			t.Fatalf("DeleteChat: %v", err)
		}
		if _, err := s.GetChat(ctx, "c1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetChat after delete err = %v", err)
		}
	})

	t.Run("empty members survive", func(t *testing.T) {
		s := newStore(t)

		if err := s.PutChat(ctx, NewChat("c2", "Empty", "")); err != nil {
			t.Fatalf("PutChat: %v", err)
		}
		got, err := s.GetChat(ctx, "c2")
		if err != nil {
			t.Fatalf("GetChat: %v", err)
		}
		if got.Members == nil || len(got.Members) != 0 {
			t.Errorf("Members = %v, want empty non-nil map", got.Members)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_UsesClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	if err := s.PutUser(ctx, &User{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutChat(ctx, NewChat("c", "C", "u")); err != nil {
		t.Fatal(err)
	}

	u, _ := s.GetUser(ctx, "u")
	c, _ := s.GetChat(ctx, "c")
	if !u.LastSeen.Equal(fixed) || !c.UpdatedAt.Equal(fixed) {
		t.Errorf("timestamps = %s / %s, want %s", u.LastSeen, c.UpdatedAt, fixed)
	}
}

func TestDecodeChat_NullMembers(t *testing.T) {
	chat, err := decodeChat([]byte(`{"id":"c","name":"C","members":null}`), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if chat.Members == nil {
		t.Error("expected members map to be initialized")
	}
}

// TestPostgresStore needs a disposable database in TEST_DATABASE_URL.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := db.NewPool(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	runStoreContract(t, func(t *testing.T) Store {
		if _, err := pool.Exec(context.Background(), "TRUNCATE users, chats"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewPostgresStore(pool)
	})
}

// TestRedisStore needs a disposable Redis database at TEST_REDIS_ADDR.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := NewRedisClient(addr, "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	runStoreContract(t, func(t *testing.T) Store {
		if err := rdb.Del(context.Background(), redisUsersKey, redisChatsKey).Err(); err != nil {
			t.Fatalf("reset keys: %v", err)
		}
		return NewRedisStore(rdb)
	})
}

func TestOpen_Memory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("store = %T, want *MemoryStore", s)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, closeFn, err := Open(context.Background(), Options{Backend: "etcd"})
	if err == nil {
		t.Fatal("Open accepted an unknown backend")
	}
	closeFn()
}
