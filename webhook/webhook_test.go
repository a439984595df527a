package webhook

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/victorivanov/retrograde/event"
	"github.com/victorivanov/retrograde/gateway"
)

func signedRequest(t *testing.T, priv ed25519.PrivateKey, body []byte) *http.Request {
	t.Helper()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ed25519.Sign(priv, append([]byte(timestamp), body...))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig))
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newTestServer(t *testing.T) (*Server, ed25519.PrivateKey, *event.Bus) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	bus := event.NewBus()
	return NewServer(pub, bus), priv, bus
}

func TestWebhookPing(t *testing.T) {
	srv, priv, _ := newTestServer(t)

	req := signedRequest(t, priv, []byte(`{"type":1}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var reply struct {
		Type int `json:"type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil || reply.Type != 1 {
		t.Errorf("reply = %s", rec.Body)
	}
}

func TestWebhookDispatchesVerifiedEvents(t *testing.T) {
	srv, priv, bus := newTestServer(t)

	var got event.MessageCreate
	bus.Subscribe(func(evt any) {
		if mc, ok := evt.(event.MessageCreate); ok {
			got = mc
		}
	})

	body := []byte(`{"type":2,"event":"` + gateway.EventMessageCreate + `","data":{"id":"7","content":"hi"}}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, priv, body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got.Message.ID != 7 || got.Message.Content != "hi" {
		t.Errorf("message = %+v", got.Message)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	srv, _, bus := newTestServer(t)

	dispatched := false
	bus.Subscribe(func(any) { dispatched = true })

	// Sign with the wrong key.
	_, otherPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, otherPriv, []byte(`{"type":2,"event":"X","data":{}}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if dispatched {
		t.Error("unverified delivery reached the bus")
	}
}

func TestWebhookRejectsMissingHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{"type":1}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
