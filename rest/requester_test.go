package rest

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/victorivanov/retrograde/data"
)

type fakeTransport struct {
	do func(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)
}

func (t *fakeTransport) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	return t.do(ctx, method, url, header, body)
}

func awaitState[T any](t *testing.T, req *Request[T], want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if req.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", req.State(), want)
}

func TestRequesterExecutesWithDefaultHeaders(t *testing.T) {
	var gotURL string
	var gotAuth, gotUA string
	tr := &fakeTransport{do: func(_ context.Context, _, url string, header http.Header, _ []byte) (*Response, error) {
		gotURL = url
		gotAuth = header.Get("Authorization")
		gotUA = header.Get("User-Agent")
		return NewResponse(200, nil, []byte(`{}`)), nil
	}}
	r := NewRequester(Options{BaseURL: "https://api.example.com/", Token: "tok", Transport: tr})
	defer r.Close()

	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("GET", "/users/{}", 7), nil, decodeObject, nil, nil)
	if !r.Queue(req) {
		t.Fatal("queue refused")
	}

	awaitState(t, req, StateSucceeded)
	if gotURL != "https://api.example.com/users/7" {
		t.Errorf("url = %q", gotURL)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotUA == "" {
		t.Error("user agent missing")
	}
}

func TestRequesterRequeuesOn429(t *testing.T) {
	var calls atomic.Int32
	tr := &fakeTransport{do: func(context.Context, string, string, http.Header, []byte) (*Response, error) {
		if calls.Add(1) == 1 {
			return NewResponse(429, nil, nil), nil
		}
		return NewResponse(200, nil, []byte(`{}`)), nil
	}}
	r := NewRequester(Options{Transport: tr})
	defer r.Close()

	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("POST", "/channels/{}/messages", 1), nil, decodeObject, nil, nil)
	r.Queue(req)

	awaitState(t, req, StateSucceeded)
	if calls.Load() != 2 {
		t.Errorf("transport calls = %d", calls.Load())
	}
}

func TestRequesterExhausts429Attempts(t *testing.T) {
	tr := &fakeTransport{do: func(context.Context, string, string, http.Header, []byte) (*Response, error) {
		return NewResponse(429, nil, nil), nil
	}}
	r := NewRequester(Options{Transport: tr})
	defer r.Close()

	var got error
	done := make(chan struct{})
	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("GET", "/gateway"), nil, decodeObject, nil,
		func(_ context.Context, err error) { got = err; close(done) })
	r.Queue(req)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request never failed")
	}
	if !errors.Is(got, ErrRateLimited) {
		t.Errorf("err = %v", got)
	}
}

func TestRequesterTransportFailure(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	tr := &fakeTransport{do: func(context.Context, string, string, http.Header, []byte) (*Response, error) {
		return nil, cause
	}}
	r := NewRequester(Options{Transport: tr})
	defer r.Close()

	var got error
	done := make(chan struct{})
	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("GET", "/gateway"), nil, decodeObject, nil,
		func(_ context.Context, err error) { got = err; close(done) })
	r.Queue(req)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request never failed")
	}
	if !errors.Is(got, cause) {
		t.Errorf("err = %v", got)
	}
}

func TestRequesterSkipsCanceled(t *testing.T) {
	var calls atomic.Int32
	tr := &fakeTransport{do: func(context.Context, string, string, http.Header, []byte) (*Response, error) {
		calls.Add(1)
		return NewResponse(200, nil, []byte(`{}`)), nil
	}}
	r := NewRequester(Options{Transport: tr, Workers: 1})
	defer r.Close()

	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("GET", "/gateway"), nil, decodeObject, nil, nil)
	req.Cancel()
	r.Queue(req)

	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("canceled request reached transport %d times", calls.Load())
	}
}

func TestRequesterFailedCheckCancels(t *testing.T) {
	tr := &fakeTransport{do: func(context.Context, string, string, http.Header, []byte) (*Response, error) {
		t.Error("check-rejected request reached transport")
		return NewResponse(200, nil, []byte(`{}`)), nil
	}}
	r := NewRequester(Options{Transport: tr})
	defer r.Close()

	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("GET", "/gateway"), nil, decodeObject, nil, nil).
		WithCheck(func() bool { return false }, false)
	r.Queue(req)

	awaitState(t, req, StateCanceled)
}

func TestRequesterFailedCheckFiresTerminalHook(t *testing.T) {
	tr := &fakeTransport{do: func(context.Context, string, string, http.Header, []byte) (*Response, error) {
		t.Error("check-rejected request reached transport")
		return NewResponse(200, nil, []byte(`{}`)), nil
	}}
	r := NewRequester(Options{Transport: tr})
	defer r.Close()

	// Callers bridging to a future resolve it from the terminal hook, so a
	// scheduler-side cancel must reach it.
	terminal := make(chan State, 1)
	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("GET", "/gateway"), nil, decodeObject, nil, nil).
		WithCheck(func() bool { return false }, false).
		WithHook(func(_ Route, st State, _ *Response) { terminal <- st })
	r.Queue(req)

	select {
	case st := <-terminal:
		if st != StateCanceled {
			t.Fatalf("terminal state = %v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hook never fired for scheduler-canceled request")
	}
}

func TestRequesterFailedCheckRequeues(t *testing.T) {
	var pass atomic.Bool
	tr := &fakeTransport{do: func(context.Context, string, string, http.Header, []byte) (*Response, error) {
		return NewResponse(200, nil, []byte(`{}`)), nil
	}}
	r := NewRequester(Options{Transport: tr})
	defer r.Close()

	req := NewRequest[data.Object](context.Background(), syncExecutor{},
		Compile("GET", "/gateway"), nil, decodeObject, nil, nil).
		WithCheck(func() bool { return pass.Load() }, true)
	r.Queue(req)

	time.Sleep(20 * time.Millisecond)
	if req.State() != StatePending {
		t.Fatalf("state = %v before check passes", req.State())
	}
	pass.Store(true)

	awaitState(t, req, StateSucceeded)
}
