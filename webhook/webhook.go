// Package webhook receives signed event callbacks over HTTP, for
// integrations that cannot hold a gateway connection open.
package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/victorivanov/retrograde/event"
)

// Signature headers on every delivery.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Delivery is the envelope of one webhook callback. Type 1 is a liveness
// ping answered without dispatching.
type Delivery struct {
	Type  int             `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	deliveryPing  = 1
	deliveryEvent = 2
)

// Server verifies deliveries and feeds them into an event bus.
type Server struct {
	echo *echo.Echo
	key  ed25519.PublicKey
	bus  *event.Bus
}

// NewServer builds the HTTP side. key is the platform's published signing
// key; bus receives every verified event delivery.
func NewServer(key ed25519.PublicKey, bus *event.Bus) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, key: key, bus: bus}
	e.POST("/webhook", s.handleDelivery)
	return s
}

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Handler exposes the underlying handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleDelivery(c echo.Context) error {
	body, err := verify(c.Request(), s.key)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	var d Delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed delivery"})
	}

	switch d.Type {
	case deliveryPing:
		return c.JSON(http.StatusOK, map[string]int{"type": deliveryPing})
	case deliveryEvent:
		if d.Event == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing event name"})
		}
		s.bus.Dispatch(d.Event, d.Data)
		return c.NoContent(http.StatusNoContent)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown delivery type"})
	}
}

// verify checks the delivery signature over timestamp||body and returns the
// body on success.
func verify(r *http.Request, key ed25519.PublicKey) ([]byte, error) {
	signature := r.Header.Get(HeaderSignature)
	if signature == "" {
		return nil, fmt.Errorf("missing signature")
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("malformed signature")
	}
	if len(sig) != ed25519.SignatureSize || sig[63]&224 != 0 {
		return nil, fmt.Errorf("invalid signature")
	}

	timestamp := r.Header.Get(HeaderTimestamp)
	if timestamp == "" {
		return nil, fmt.Errorf("missing timestamp")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	signed := append([]byte(timestamp), body...)
	if !ed25519.Verify(key, signed, sig) {
		return nil, fmt.Errorf("invalid signature")
	}
	return body, nil
}
