package rest

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/victorivanov/retrograde/data"
)

// StatusNone is the sentinel status for exchanges that produced no HTTP
// response at all (connection refused, timeout).
const StatusNone = -1

type parseKind int

const (
	parseNone parseKind = iota
	parseObject
	parseArray
	parseText
)

// Response wraps exactly one transport exchange. The body is parsed lazily,
// at most once; the first successful interpretation (object, array, or raw
// text fallback) is cached and later accessors of another kind report
// absence without re-parsing.
type Response struct {
	Status     int
	Header     http.Header
	RetryAfter time.Duration

	body []byte
	err  error

	mu     sync.Mutex
	parsed bool
	kind   parseKind
	obj    data.Object
	arr    data.Array
	text   string
}

// NewResponse wraps a completed HTTP exchange. Retry-After is read from the
// header (seconds, the server convention).
func NewResponse(status int, header http.Header, body []byte) *Response {
	r := &Response{Status: status, Header: header, body: body}
	if header != nil {
		if s := header.Get("Retry-After"); s != "" {
			if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
				r.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	}
	return r
}

// NewTransportError wraps a transport-level failure that yielded no
// response.
func NewTransportError(err error) *Response {
	return &Response{Status: StatusNone, err: err}
}

// Ok reports a 2xx status.
func (r *Response) Ok() bool {
	return r.Status >= 200 && r.Status < 300
}

// RateLimited reports a 429 status.
func (r *Response) RateLimited() bool {
	return r.Status == http.StatusTooManyRequests
}

// TransportError reports that no HTTP response was obtained at all.
func (r *Response) TransportError() bool {
	return r.Status == StatusNone
}

// Err returns the underlying transport error, if any.
func (r *Response) Err() error {
	return r.err
}

// Body returns the raw body bytes.
func (r *Response) Body() []byte {
	return r.body
}

// Object returns the body parsed as a JSON object. The second return is
// false when the body is not an object; no re-parse is attempted.
func (r *Response) Object() (data.Object, bool) {
	r.ensureParsed()
	return r.obj, r.kind == parseObject
}

// Array returns the body parsed as a JSON array.
func (r *Response) Array() (data.Array, bool) {
	r.ensureParsed()
	return r.arr, r.kind == parseArray
}

// Text returns the body as a string. For bodies that parsed as structured
// data this is the raw body text; for unparseable bodies it is the fallback
// representation.
func (r *Response) Text() string {
	r.ensureParsed()
	if r.kind == parseText {
		return r.text
	}
	return string(r.body)
}

// ensureParsed attempts the body parse exactly once.
func (r *Response) ensureParsed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parsed {
		return
	}
	r.parsed = true

	trimmed := bytes.TrimSpace(r.body)
	if len(trimmed) == 0 {
		r.kind = parseNone
		return
	}

	switch trimmed[0] {
	case '{':
		if obj, err := data.ParseObject(trimmed); err == nil {
			r.kind = parseObject
			r.obj = obj
			return
		}
	case '[':
		if arr, err := data.ParseArray(trimmed); err == nil {
			r.kind = parseArray
			r.arr = arr
			return
		}
	}

	// Structured parse failed or was never applicable: keep the raw text.
	r.kind = parseText
	r.text = string(r.body)
}
