package rest

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// Transport executes one HTTP exchange. It returns a Response for any
// completed exchange, successful or not, and an error only when no response
// was obtained at all.
type Transport interface {
	Do(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)
}

const defaultExchangeTimeout = 10 * time.Second

// FastHTTPTransport is the default Transport: a small round-robin pool of
// fasthttp clients with persistent connections.
type FastHTTPTransport struct {
	clients []*fasthttp.Client
	next    atomic.Uint32
}

// NewFastHTTPTransport creates a pool of size clients. Size below one is
// treated as one.
func NewFastHTTPTransport(size int) *FastHTTPTransport {
	if size < 1 {
		size = 1
	}
	clients := make([]*fasthttp.Client, size)
	for i := range clients {
		clients[i] = &fasthttp.Client{
			MaxConnsPerHost:          256,
			MaxIdleConnDuration:      90 * time.Second,
			ReadTimeout:              defaultExchangeTimeout,
			WriteTimeout:             defaultExchangeTimeout,
			NoDefaultUserAgentHeader: true,
		}
	}
	return &FastHTTPTransport{clients: clients}
}

func (t *FastHTTPTransport) client() *fasthttp.Client {
	n := t.next.Add(1)
	return t.clients[int(n)%len(t.clients)]
}

func (t *FastHTTPTransport) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	deadline := time.Now().Add(defaultExchangeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.client().DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	outHeader := http.Header{}
	resp.Header.VisitAll(func(key, value []byte) {
		outHeader.Add(string(key), string(value))
	})

	// The fasthttp response body is pooled; copy it out.
	outBody := append([]byte(nil), resp.Body()...)

	return NewResponse(resp.StatusCode(), outHeader, outBody), nil
}
