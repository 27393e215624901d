package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// scriptedServer upgrades a single connection and hands it to script,
// which drives the fake peer's side of the conversation.
func scriptedServer(t *testing.T, script func(t *testing.T, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{"chat"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(t, conn)
	}))
	return srv
}

func wsURLOf(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	frame, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("peer decode: %v", err)
	}
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, typeCode string, payload []byte) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(typeCode, payload)); err != nil {
		t.Fatalf("peer write: %v", err)
	}
}

func TestSessionStateMachineOrdering(t *testing.T) {
	var kinds []string
	var mu sync.Mutex
	record := func(k string) {
		mu.Lock()
		kinds = append(kinds, k)
		mu.Unlock()
	}

	done := make(chan struct{})
	srv := scriptedServer(t, func(t *testing.T, conn *websocket.Conn) {
		recvFrame(t, conn) // CONNECT
		sendFrame(t, conn, TypeConnect, []byte{separator, 'N', 'i', 'c', 'k', separator, 's', 'y', 'n'})
		recvFrame(t, conn) // JOIN
		sendFrame(t, conn, TypeEnterChatRoom, nil)
		sendFrame(t, conn, TypeChat, []byte{separator, 'h', 'i', separator, 'u', '1'})
		sendFrame(t, conn, TypeDisconnect, nil)
		<-done
	})
	defer srv.Close()

	s := NewSession(Config{})
	s.Subscribe(KindRaw, func(Event) { record("raw") })
	s.Subscribe(KindConnect, func(Event) { record("connect") })
	s.Subscribe(KindEnterChatRoom, func(Event) { record("enter_chat_room") })
	s.Subscribe(KindChat, func(Event) { record("chat") })
	s.Subscribe(KindDisconnect, func(Event) { record("disconnect") })

	s.room = RoomDescriptor{ChatNo: "99"}

	err := s.runFromURL(context.Background(), wsURLOf(srv))
	close(done)
	if err != nil {
		t.Fatalf("runFromURL: %v", err)
	}

	mu.Lock()
	got := strings.Join(kinds, ",")
	mu.Unlock()
	want := "raw,connect,raw,enter_chat_room,raw,chat,raw,disconnect"
	if got != want {
		t.Fatalf("event order = %q, want %q", got, want)
	}
}

func TestSessionUnknownCodeEmitsRawThenUnknown(t *testing.T) {
	var kinds []string
	done := make(chan struct{})
	srv := scriptedServer(t, func(t *testing.T, conn *websocket.Conn) {
		recvFrame(t, conn)
		sendFrame(t, conn, TypeConnect, []byte{separator})
		recvFrame(t, conn)
		sendFrame(t, conn, "9999", []byte{separator, 'a'})
		sendFrame(t, conn, TypeDisconnect, nil)
		<-done
	})
	defer srv.Close()

	s := NewSession(Config{})
	s.Subscribe(KindRaw, func(Event) { kinds = append(kinds, "raw") })
	s.Subscribe(KindConnect, func(Event) { kinds = append(kinds, "connect") })
	s.Subscribe(KindUnknown, func(e Event) { kinds = append(kinds, "unknown") })
	s.Subscribe(KindDisconnect, func(Event) { kinds = append(kinds, "disconnect") })

	err := s.runFromURL(context.Background(), wsURLOf(srv))
	close(done)
	if err != nil {
		t.Fatalf("runFromURL: %v", err)
	}

	want := "raw,connect,raw,unknown,raw,disconnect"
	if got := strings.Join(kinds, ","); got != want {
		t.Fatalf("event order = %q, want %q", got, want)
	}
}

// TestSessionJoinPayloadUsesChatNoNotDialRoomID confirms the WebSocket
// dial path and the JOIN payload carry two distinct identifiers: the
// dial path uses the caller-supplied room id while JOIN uses the
// resolver's ChatNo, mirroring the upstream protocol's own split
// between streamer id and chat_no.
func TestSessionJoinPayloadUsesChatNoNotDialRoomID(t *testing.T) {
	joinPayload := make(chan []byte, 1)
	done := make(chan struct{})
	srv := scriptedServer(t, func(t *testing.T, conn *websocket.Conn) {
		recvFrame(t, conn) // CONNECT
		sendFrame(t, conn, TypeConnect, []byte{separator})
		join := recvFrame(t, conn)
		joinPayload <- join.Payload
		<-done
	})
	defer srv.Close()
	defer close(done)

	s := NewSession(Config{})
	s.room = RoomDescriptor{ChatNo: "99"}

	go s.runFromURL(context.Background(), wsURLOf(srv))

	select {
	case payload := <-joinPayload:
		if !strings.Contains(string(payload), "99") {
			t.Errorf("JOIN payload %q must contain ChatNo %q, not a dial room id", payload, "99")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for JOIN")
	}
}

func TestSessionKeepaliveCadence(t *testing.T) {
	pings := make(chan struct{}, 16)
	done := make(chan struct{})
	srv := scriptedServer(t, func(t *testing.T, conn *websocket.Conn) {
		recvFrame(t, conn) // CONNECT
		sendFrame(t, conn, TypeConnect, []byte{separator})
		recvFrame(t, conn) // JOIN
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f, err := DecodeFrame(raw)
			if err != nil {
				continue
			}
			if f.TypeCode == TypePing {
				pings <- struct{}{}
			}
		}
	})
	defer srv.Close()
	defer close(done)

	tk := &fakeTicker{ch: make(chan time.Time)}
	s := NewSession(Config{newTicker: func(time.Duration) ticker { return tk }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- s.runFromURL(ctx, wsURLOf(srv)) }()

	// Let the handshake and JOIN complete before exercising the ticker.
	time.Sleep(100 * time.Millisecond)

	assertPingCount := func(n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			select {
			case <-pings:
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for ping %d/%d", i+1, n)
			}
		}
		select {
		case <-pings:
			t.Fatalf("received an unexpected extra ping")
		case <-time.After(50 * time.Millisecond):
		}
	}

	// "59s" worth of clock advance: no tick delivered, no ping.
	select {
	case <-pings:
		t.Fatal("received a ping before any tick was delivered")
	case <-time.After(50 * time.Millisecond):
	}

	// "60s": one tick, one ping.
	tk.ch <- time.Now()
	assertPingCount(1)

	// Two more ticks ("180s" cumulative): two more pings.
	tk.ch <- time.Now()
	tk.ch <- time.Now()
	assertPingCount(2)

	cancel()
	<-runDone
}

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func TestSessionCancellationUnblocksRun(t *testing.T) {
	srv := scriptedServer(t, func(t *testing.T, conn *websocket.Conn) {
		recvFrame(t, conn)
		sendFrame(t, conn, TypeConnect, []byte{separator})
		recvFrame(t, conn)
		// Block forever until the client disconnects.
		conn.ReadMessage()
	})
	defer srv.Close()

	var disconnects int
	s := NewSession(Config{})
	s.Subscribe(KindDisconnect, func(Event) { disconnects++ })

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- s.runFromURL(ctx, wsURLOf(srv)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("runFromURL returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runFromURL did not return after cancellation")
	}

	if disconnects != 1 {
		t.Fatalf("disconnect handler invoked %d times, want 1", disconnects)
	}

	s.Close() // must be a no-op, must not hang
}

func TestSessionNotLiveReturnsNotLiveError(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"CHANNEL":{"RESULT":0}}`))
	}))
	defer apiSrv.Close()

	s := NewSession(Config{HTTPClient: apiSrv.Client()})
	s.resolver.endpoint = apiSrv.URL

	err := s.Run(context.Background(), "room1")
	if _, ok := err.(*NotLiveError); !ok {
		t.Fatalf("Run returned %v (%T), want *NotLiveError", err, err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want StateClosed", s.State())
	}
}
