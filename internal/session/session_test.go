package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/kuuji/clipshare/internal/clip"
	"github.com/kuuji/clipshare/internal/config"
	"github.com/kuuji/clipshare/pkg/protocol"
)

// fakeRelay is a minimal in-memory relay: it accepts one connection at a
// time, replies to the auth frame per authReply, and relays whatever the
// test script tells it to.
type fakeRelay struct {
	authReply bool
	conns     chan *websocket.Conn
}

func newFakeRelay(authReply bool) *fakeRelay {
	return &fakeRelay{authReply: authReply, conns: make(chan *websocket.Conn, 8)}
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	ctx := context.Background()
	_, _, err = conn.Read(ctx) // auth request
	if err != nil {
		return
	}

	reply, _ := protocol.AuthReply{Success: f.authReply}.Marshal()
	if err := conn.Write(ctx, websocket.MessageText, reply); err != nil {
		return
	}
	if !f.authReply {
		conn.Close(websocket.StatusNormalClosure, "rejected")
		return
	}

	f.conns <- conn
}

func receiveEvent(t *testing.T, events <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func waitForEventKind(t *testing.T, events <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed before observing %v", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestSession_ConnectSuccess(t *testing.T) {
	t.Parallel()

	relay := newFakeRelay(true)
	srv := httptest.NewServer(relay)
	defer srv.Close()

	cfg := config.Config{URI: "ws" + srv.URL[len("http"):], Token: "tok", Name: "client-a"}
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForEventKind(t, s.Events(), EventStartedConnecting, time.Second)
	waitForEventKind(t, s.Events(), EventConnected, time.Second)
}

func TestSession_AuthRejected_BacksOff(t *testing.T) {
	t.Parallel()

	relay := newFakeRelay(false)
	srv := httptest.NewServer(relay)
	defer srv.Close()

	cfg := config.Config{URI: "ws" + srv.URL[len("http"):], Token: "bad", Name: "client-b"}
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForEventKind(t, s.Events(), EventAuthFailed, time.Second)
	waitForEventKind(t, s.Events(), EventDisconnected, time.Second)
	sleeping := waitForEventKind(t, s.Events(), EventStartedSleeping, time.Second)
	if sleeping.Delay != 2*time.Second {
		t.Errorf("first backoff delay = %v, want 2s", sleeping.Delay)
	}
}

func TestSession_ReceivedClipSurfaces(t *testing.T) {
	t.Parallel()

	relay := newFakeRelay(true)
	srv := httptest.NewServer(relay)
	defer srv.Close()

	cfg := config.Config{URI: "ws" + srv.URL[len("http"):], Token: "tok", Name: "client-c"}
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForEventKind(t, s.Events(), EventConnected, time.Second)

	conn := <-relay.conns
	data, _ := protocol.Clip{Text: "world", Timestamp: 2000}.Marshal()
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		t.Fatalf("writing clip from server: %v", err)
	}

	ev := waitForEventKind(t, s.Events(), EventReceivedClip, time.Second)
	if ev.Clip != (clip.Clip{Text: "world", Timestamp: 2000}) {
		t.Errorf("ReceivedClip event = %+v", ev.Clip)
	}
}

func TestSession_SendClip_DroppedWhenNotConnected(t *testing.T) {
	t.Parallel()

	cfg := config.Config{URI: "ws://127.0.0.1:1/unreachable", Token: "tok", Name: "client-d"}
	s := New(cfg, nil)

	// Never connected: SendClip must not panic and must simply drop.
	s.SendClip(context.Background(), clip.Clip{Text: "hello", Timestamp: 1})
}

func TestSession_Reset_ForcesReadyToConnect(t *testing.T) {
	t.Parallel()

	relay := newFakeRelay(true)
	srv := httptest.NewServer(relay)
	defer srv.Close()

	cfg := config.Config{URI: "ws" + srv.URL[len("http"):], Token: "tok", Name: "client-e"}
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForEventKind(t, s.Events(), EventConnected, time.Second)
	s.Reset()

	waitForEventKind(t, s.Events(), EventDisconnected, time.Second)
	waitForEventKind(t, s.Events(), EventStartedConnecting, time.Second)
}

func TestSession_Run_ExitsOnCancel(t *testing.T) {
	t.Parallel()

	relay := newFakeRelay(true)
	srv := httptest.NewServer(relay)
	defer srv.Close()

	cfg := config.Config{URI: "ws" + srv.URL[len("http"):], Token: "tok", Name: "client-f"}
	s := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	waitForEventKind(t, s.Events(), EventConnected, time.Second)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit after cancellation")
	}

	if _, ok := <-s.Events(); ok {
		t.Error("event channel still open after Run returned")
	}
}
