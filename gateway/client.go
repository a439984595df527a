package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	maxMessageSize   = 4096
	sendBufferSize   = 256
	heartbeatTimeout = 10 * time.Second
	maxBackoff       = 60 * time.Second
)

// ErrClosed is returned by Connect after Close has been called.
var ErrClosed = errors.New("gateway: client closed")

// DispatchFunc receives every DISPATCH event. It runs on the read goroutine;
// hand off anything slow.
type DispatchFunc func(event string, data json.RawMessage)

// Client maintains one gateway connection: identify on first connect, resume
// on reconnect, heartbeats at the server-announced interval.
type Client struct {
	url      string
	token    string
	dispatch DispatchFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	closed    bool

	sequence atomic.Int64
	lastAck  atomic.Int64

	readyCh chan ReadyData
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewClient builds a client for the given gateway URL. dispatch may be nil.
func NewClient(url, token string, dispatch DispatchFunc) *Client {
	if dispatch == nil {
		dispatch = func(string, json.RawMessage) {}
	}
	return &Client{
		url:      url,
		token:    token,
		dispatch: dispatch,
		readyCh:  make(chan ReadyData, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the gateway, completes the HELLO/IDENTIFY handshake, and
// returns once READY arrives. The connection is then maintained in the
// background, resuming across drops, until Close.
func (c *Client) Connect(ctx context.Context) (ReadyData, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ReadyData{}, ErrClosed
	}
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		return ReadyData{}, err
	}

	c.wg.Add(1)
	go c.run()

	select {
	case ready := <-c.readyCh:
		return ready, nil
	case <-ctx.Done():
		c.Close()
		return ReadyData{}, ctx.Err()
	case <-c.done:
		return ReadyData{}, ErrClosed
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	c.wg.Wait()
}

// SessionID returns the session identifier from the last READY, empty before
// the first handshake completes.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Sequence returns the last dispatch sequence seen.
func (c *Client) Sequence() int64 {
	return c.sequence.Load()
}

// UpdatePresence sends an Op 3 presence change.
func (c *Client) UpdatePresence(status string) error {
	return c.send(Payload{Op: OpPresenceUpdate, Data: marshalRaw(ClientPresenceUpdate{Status: status})})
}

// dial opens the socket and completes the handshake up to IDENTIFY/RESUME.
func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.conn = conn
	sessionID := c.sessionID
	c.mu.Unlock()

	if sessionID != "" {
		slog.Info("gateway: resuming", "session_id", sessionID, "seq", c.sequence.Load())
		return c.send(Payload{Op: OpResume, Data: marshalRaw(ResumeData{
			Token:     c.token,
			SessionID: sessionID,
			Sequence:  c.sequence.Load(),
		})})
	}
	return c.send(Payload{Op: OpIdentify, Data: marshalRaw(IdentifyData{Token: c.token})})
}

// run owns the connection lifecycle: read until the link drops, then back
// off and redial until Close.
func (c *Client) run() {
	defer c.wg.Done()

	backoff := time.Second
	for {
		err := c.readLoop()
		select {
		case <-c.done:
			return
		default:
		}
		slog.Warn("gateway: connection lost, reconnecting", "error", err, "backoff", backoff)

		t := time.NewTimer(backoff + time.Duration(rand.Int63n(int64(backoff/2+1))))
		select {
		case <-c.done:
			t.Stop()
			return
		case <-t.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = c.dial(ctx)
		cancel()
		if err != nil {
			continue
		}
		backoff = time.Second
	}
}

// readLoop consumes payloads until the connection fails. Heartbeats run on a
// nested goroutine started when HELLO announces the interval.
func (c *Client) readLoop() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("gateway: no connection")
	}

	stopHeartbeat := make(chan struct{})
	defer close(stopHeartbeat)
	heartbeatStarted := false

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return err
		}

		var payload Payload
		if err := json.Unmarshal(message, &payload); err != nil {
			slog.Error("gateway: invalid payload", "error", err)
			continue
		}

		switch payload.Op {
		case OpHello:
			// One heartbeat loop per connection, even if the server repeats
			// HELLO.
			if heartbeatStarted {
				slog.Warn("gateway: duplicate hello, ignoring")
				continue
			}
			var hello HelloData
			if err := json.Unmarshal(payload.Data, &hello); err != nil {
				slog.Error("gateway: bad hello", "error", err)
				continue
			}
			heartbeatStarted = true
			interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
			c.lastAck.Store(time.Now().UnixMilli())
			go c.heartbeat(conn, interval, stopHeartbeat)

		case OpHeartbeat:
			// Server-requested heartbeat.
			_ = c.send(Payload{Op: OpHeartbeat})

		case OpHeartbeatAck:
			c.lastAck.Store(time.Now().UnixMilli())

		case OpReconnect:
			_ = conn.Close()
			return errors.New("gateway: server requested reconnect")

		case OpDispatch:
			c.handleDispatch(payload)
		}
	}
}

func (c *Client) handleDispatch(payload Payload) {
	if payload.Sequence != nil {
		c.sequence.Store(*payload.Sequence)
	}
	if payload.Event == nil {
		return
	}
	event := *payload.Event

	if event == EventReady {
		var ready ReadyData
		if err := json.Unmarshal(payload.Data, &ready); err != nil {
			slog.Error("gateway: bad ready", "error", err)
			return
		}
		c.mu.Lock()
		c.sessionID = ready.SessionID
		c.mu.Unlock()
		select {
		case c.readyCh <- ready:
		default:
		}
	}

	c.dispatch(event, payload.Data)
}

// heartbeat sends Op 1 on the announced interval and drops the connection
// when the server stops acknowledging.
func (c *Client) heartbeat(conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			if time.Since(time.UnixMilli(c.lastAck.Load())) > interval+heartbeatTimeout {
				slog.Warn("gateway: heartbeat ack timeout")
				_ = conn.Close()
				return
			}
			if err := c.send(Payload{Op: OpHeartbeat}); err != nil {
				return
			}
		}
	}
}

// send marshals and writes one payload. Writes are serialized under the
// client mutex; gorilla allows one concurrent writer.
func (c *Client) send(p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("gateway: not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func marshalRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("gateway: marshal error", "error", err)
		return nil
	}
	return data
}
