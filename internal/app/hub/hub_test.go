package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatr/internal/app/events"
	"chatr/internal/app/notify"
	"chatr/internal/pkg/errs"
)

type recordingHandler struct {
	envs chan events.Envelope
}

func (h *recordingHandler) Dispatch(_ context.Context, env events.Envelope) (events.Result, error) {
	h.envs <- env
	return events.Result{Status: events.StatusOK}, nil
}

func newTestHub(t *testing.T) (*Hub, *recordingHandler, string) {
	t.Helper()
	h := New()
	rh := &recordingHandler{envs: make(chan events.Envelope, 16)}
	h.SetHandler(rh)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn, r.URL.Query().Get("user"), time.Time{})
	}))
	t.Cleanup(srv.Close)

	return h, rh, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, h *Hub, url, user string) *websocket.Conn {
	t.Helper()
	before := h.connections(user)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+user, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	waitFor(t, func() bool { return h.connections(user) > before })
	return conn
}

func (h *Hub) connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func receive(t *testing.T, rh *recordingHandler) events.Envelope {
	t.Helper()
	select {
	case env := <-rh.envs:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no event dispatched")
		return events.Envelope{}
	}
}

func TestBroadcastAllAndSendToUser(t *testing.T) {
	ctx := context.Background()
	h, _, url := newTestHub(t)
	alice := dial(t, h, url, "alice")
	bob := dial(t, h, url, "bob")

	if err := h.BroadcastAll(ctx, notify.Message{ChatEvent: notify.EventUserOnline, Data: "x"}); err != nil {
		t.Fatalf("BroadcastAll: %v", err)
	}
	for _, conn := range []*websocket.Conn{alice, bob} {
		if f := readFrame(t, conn); f.Type != TypeEvent || f.ChatEvent != notify.EventUserOnline {
			t.Errorf("frame = %+v", f)
		}
	}

	if err := h.SendToUser(ctx, "bob", notify.Message{ChatEvent: notify.EventJoinPrivateChat, Data: "p"}); err != nil {
		t.Fatalf("SendToUser: %v", err)
	}
	if f := readFrame(t, bob); f.ChatEvent != notify.EventJoinPrivateChat || f.Data != "p" {
		t.Errorf("frame = %+v", f)
	}
}

func TestUnreachableUser(t *testing.T) {
	ctx := context.Background()
	h := New()

	if err := h.SendToUser(ctx, "ghost", notify.Message{ChatEvent: "x"}); !errors.Is(err, notify.ErrUnreachable) {
		t.Errorf("SendToUser err = %v", err)
	}
	if err := h.GroupAdd(ctx, "c1", "ghost"); !errors.Is(err, notify.ErrUnreachable) {
		t.Errorf("GroupAdd err = %v", err)
	}
	if err := h.GroupRemove(ctx, "c1", "ghost"); err != nil {
		t.Errorf("GroupRemove err = %v", err)
	}
}

func TestInboundEvent(t *testing.T) {
	h, rh, url := newTestHub(t)
	alice := dial(t, h, url, "alice")

	if err := alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"event","event":"joinChat","data":"c1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	env := receive(t, rh)
	if env.EventName != events.NameJoinChat || env.OriginUserID != "alice" || string(env.Body) != `"c1"` {
		t.Errorf("envelope = %+v body %s", env, env.Body)
	}
}

func TestInboundDisconnectedRejected(t *testing.T) {
	h, rh, url := newTestHub(t)
	alice := dial(t, h, url, "alice")

	if err := alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"event","event":"disconnected"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := readFrame(t, alice)
	if f.Type != TypeError {
		t.Fatalf("frame = %+v, want error", f)
	}
	payload, _ := f.Data.(map[string]any)
	if code, _ := payload["code"].(float64); int(code) != errs.ErrEventNotAllowed {
		t.Errorf("error payload = %v", f.Data)
	}
	select {
	case env := <-rh.envs:
		t.Errorf("client disconnected event was dispatched: %+v", env)
	default:
	}
}

func TestGroupRelay(t *testing.T) {
	ctx := context.Background()
	h, _, url := newTestHub(t)
	alice := dial(t, h, url, "alice")
	bob := dial(t, h, url, "bob")
	carol := dial(t, h, url, "carol")

	for _, u := range []string{"alice", "bob"} {
		if err := h.GroupAdd(ctx, "c1", u); err != nil {
			t.Fatalf("GroupAdd(%s): %v", u, err)
		}
	}

	if err := alice.WriteJSON(map[string]any{"type": TypeSendToGroup, "group": "c1", "data": "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := readFrame(t, bob)
	if f.Type != TypeMessage || f.Group != "c1" || f.FromUserID != "alice" || f.Data != "hello" {
		t.Errorf("bob got %+v", f)
	}

	// Neither the sender nor a non-member got the relay: their next frame is this marker.
	if err := h.BroadcastAll(ctx, notify.Message{ChatEvent: "marker"}); err != nil {
		t.Fatalf("BroadcastAll: %v", err)
	}
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "carol": carol} {
		if f := readFrame(t, conn); f.ChatEvent != "marker" {
			t.Errorf("%s got %+v before marker", name, f)
		}
	}

	if err := carol.WriteJSON(map[string]any{"type": TypeSendToGroup, "group": "c1", "data": "let me in"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, carol); f.Type != TypeError {
		t.Errorf("non-member relay: %+v, want error", f)
	}
}

func TestGroupBroadcast(t *testing.T) {
	ctx := context.Background()
	h, _, url := newTestHub(t)
	bob := dial(t, h, url, "bob")

	if err := h.GroupAdd(ctx, "c1", "bob"); err != nil {
		t.Fatalf("GroupAdd: %v", err)
	}
	if err := h.GroupBroadcast(ctx, "c1", "Bob has joined the chat"); err != nil {
		t.Fatalf("GroupBroadcast: %v", err)
	}

	f := readFrame(t, bob)
	if f.Type != TypeMessage || f.Group != "c1" || f.FromUserID != "" || f.Data != "Bob has joined the chat" {
		t.Errorf("frame = %+v", f)
	}

	if err := h.GroupRemove(ctx, "c1", "bob"); err != nil {
		t.Fatalf("GroupRemove: %v", err)
	}
	if m := h.MembersOf("c1"); len(m) != 0 {
		t.Errorf("members after remove = %v", m)
	}
}

func TestLastConnectionDispatchesDisconnect(t *testing.T) {
	ctx := context.Background()
	h, rh, url := newTestHub(t)
	first := dial(t, h, url, "alice")
	second := dial(t, h, url, "alice")

	if err := h.GroupAdd(ctx, "c1", "alice"); err != nil {
		t.Fatalf("GroupAdd: %v", err)
	}

	_ = first.Close()
	waitFor(t, func() bool { return h.connections("alice") == 1 })
	select {
	case env := <-rh.envs:
		t.Fatalf("dispatched %+v while a connection remains", env)
	default:
	}

	_ = second.Close()
	env := receive(t, rh)
	if env.EventName != events.NameDisconnected || env.OriginUserID != "alice" {
		t.Errorf("envelope = %+v", env)
	}
	if h.Connected("alice") {
		t.Error("alice still connected")
	}
	if m := h.MembersOf("c1"); len(m) != 0 {
		t.Errorf("group still routes to %v", m)
	}
}

func TestShutdown(t *testing.T) {
	h, rh, url := newTestHub(t)
	alice := dial(t, h, url, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Error("connection still open after shutdown")
	}
	select {
	case env := <-rh.envs:
		t.Errorf("shutdown dispatched %+v", env)
	default:
	}
}

func TestFrameEncoding(t *testing.T) {
	b, err := json.Marshal(groupFrame("c1", "", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"message","group":"c1","data":"hi"}` {
		t.Errorf("frame = %s", b)
	}
}
