package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testGateway is a minimal server side of the protocol: upgrade, HELLO,
// answer IDENTIFY with READY, then hand the socket to fn.
func testGateway(t *testing.T, fn func(ws *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		writePayload(t, ws, Payload{Op: OpHello, Data: mustMarshal(t, HelloData{HeartbeatInterval: 45000})})

		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var identify Payload
		if err := json.Unmarshal(raw, &identify); err != nil || identify.Op != OpIdentify {
			t.Errorf("expected identify, got %s", raw)
			return
		}

		seq := int64(1)
		event := EventReady
		writePayload(t, ws, Payload{
			Op:       OpDispatch,
			Sequence: &seq,
			Event:    &event,
			Data:     mustMarshal(t, ReadyData{SessionID: "sess-1", UserID: 42}),
		})

		if fn != nil {
			fn(ws)
		} else {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writePayload(t *testing.T, ws *websocket.Conn, p Payload) {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	_ = ws.WriteMessage(websocket.TextMessage, data)
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestClientHandshake(t *testing.T) {
	url := testGateway(t, nil)
	c := NewClient(url, "token", nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ready, err := c.Connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ready.SessionID != "sess-1" || ready.UserID != 42 {
		t.Errorf("ready = %+v", ready)
	}
	if c.SessionID() != "sess-1" {
		t.Errorf("session id = %q", c.SessionID())
	}
}

func TestClientDispatchesEvents(t *testing.T) {
	url := testGateway(t, func(ws *websocket.Conn) {
		seq := int64(2)
		event := EventMessageCreate
		writePayload(t, ws, Payload{
			Op:       OpDispatch,
			Sequence: &seq,
			Event:    &event,
			Data:     json.RawMessage(`{"id":"7","content":"hi"}`),
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	events := make(chan string, 8)
	c := NewClient(url, "token", func(event string, _ json.RawMessage) {
		events <- event
	})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	deadline := time.After(2 * time.Second)
	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case ev := <-events:
			seen[ev] = true
		case <-deadline:
			t.Fatalf("events seen = %v", seen)
		}
	}
	if !seen[EventReady] || !seen[EventMessageCreate] {
		t.Errorf("events seen = %v", seen)
	}
	if got := c.Sequence(); got != 2 {
		t.Errorf("sequence = %d", got)
	}
}

func TestClientAnswersServerHeartbeat(t *testing.T) {
	gotHeartbeat := make(chan struct{}, 1)
	url := testGateway(t, func(ws *websocket.Conn) {
		writePayload(t, ws, Payload{Op: OpHeartbeat})
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var p Payload
			if json.Unmarshal(raw, &p) == nil && p.Op == OpHeartbeat {
				select {
				case gotHeartbeat <- struct{}{}:
				default:
				}
			}
		}
	})

	c := NewClient(url, "token", nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-gotHeartbeat:
	case <-time.After(2 * time.Second):
		t.Fatal("client never answered the server heartbeat")
	}
}

func TestClientIgnoresDuplicateHello(t *testing.T) {
	gotHeartbeat := make(chan struct{}, 1)
	url := testGateway(t, func(ws *websocket.Conn) {
		// A second HELLO with a tiny interval must not start another
		// heartbeat loop alongside the first (45s) one.
		writePayload(t, ws, Payload{Op: OpHello, Data: mustMarshal(t, HelloData{HeartbeatInterval: 10})})
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var p Payload
			if json.Unmarshal(raw, &p) == nil && p.Op == OpHeartbeat {
				select {
				case gotHeartbeat <- struct{}{}:
				default:
				}
			}
		}
	})

	c := NewClient(url, "token", nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-gotHeartbeat:
		t.Fatal("duplicate hello started a second heartbeat loop")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestClientResumesAfterDrop(t *testing.T) {
	resumed := make(chan ResumeData, 1)
	var conns int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		conns++

		writePayload(t, ws, Payload{Op: OpHello, Data: mustMarshal(t, HelloData{HeartbeatInterval: 45000})})
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return
		}

		if conns == 1 {
			if p.Op != OpIdentify {
				t.Errorf("first connection op = %d", p.Op)
			}
			seq := int64(3)
			event := EventReady
			writePayload(t, ws, Payload{
				Op:       OpDispatch,
				Sequence: &seq,
				Event:    &event,
				Data:     mustMarshal(t, ReadyData{SessionID: "sess-1", UserID: 42}),
			})
			// Drop the link to force a resume.
			return
		}

		if p.Op != OpResume {
			t.Errorf("second connection op = %d", p.Op)
			return
		}
		var resume ResumeData
		if err := json.Unmarshal(p.Data, &resume); err != nil {
			t.Errorf("bad resume payload: %v", err)
			return
		}
		select {
		case resumed <- resume:
		default:
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "token", nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case resume := <-resumed:
		if resume.SessionID != "sess-1" || resume.Sequence != 3 {
			t.Errorf("resume = %+v", resume)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client never resumed")
	}
}

func TestClientConnectAfterClose(t *testing.T) {
	c := NewClient("ws://127.0.0.1:0", "token", nil)
	c.Close()
	if _, err := c.Connect(context.Background()); err != ErrClosed {
		t.Fatalf("err = %v", err)
	}
}
