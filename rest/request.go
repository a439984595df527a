package rest

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/victorivanov/retrograde/reason"
)

// State is a request's lifecycle state. Terminal states are entered at most
// once; exactly one continuation fires per request.
type State int32

const (
	StatePending State = iota
	StateCanceled
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCanceled:
		return "canceled"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DecodeFunc turns a successful response into the request's result value.
type DecodeFunc[T any] func(*Response) (T, error)

// SuccessFunc receives the decoded value on the callback executor. The
// context carries the audit reason captured when the request was built.
type SuccessFunc[T any] func(ctx context.Context, value T)

// FailureFunc receives the classified failure on the callback executor.
type FailureFunc func(ctx context.Context, err error)

// Hook observes every request that reaches a terminal state, exactly once
// per request. resp is nil for canceled requests.
type Hook func(route Route, state State, resp *Response)

// Request is one pending unit of API work: the compiled route and body, the
// caller's continuations, and the audit reason snapshotted from the calling
// context at construction so it survives the hop to the transport and
// callback goroutines.
type Request[T any] struct {
	route       Route
	body        []byte
	header      http.Header
	auditReason string
	check       func() bool
	shouldQueue bool
	decode      DecodeFunc[T]
	onSuccess   SuccessFunc[T]
	onFailure   FailureFunc
	exec        Executor
	hook        Hook

	state atomic.Int32
}

// NewRequest builds a pending request. The audit reason is captured from
// ctx here, on the calling goroutine, not when the request later executes.
func NewRequest[T any](
	ctx context.Context,
	exec Executor,
	route Route,
	body []byte,
	decode DecodeFunc[T],
	onSuccess SuccessFunc[T],
	onFailure FailureFunc,
) *Request[T] {
	r := &Request[T]{
		route:       route,
		body:        body,
		header:      http.Header{},
		auditReason: reason.From(ctx),
		decode:      decode,
		onSuccess:   onSuccess,
		onFailure:   onFailure,
		exec:        exec,
	}
	if r.auditReason != "" {
		r.header.Set(reason.Header, r.auditReason)
	}
	return r
}

// WithCheck attaches a pre-flight predicate, re-evaluated at execution time.
// When it fails, queueOnFail requeues the request instead of canceling it.
func (r *Request[T]) WithCheck(check func() bool, queueOnFail bool) *Request[T] {
	r.check = check
	r.shouldQueue = queueOnFail
	return r
}

// WithHeader sets an outbound header.
func (r *Request[T]) WithHeader(key, value string) *Request[T] {
	r.header.Set(key, value)
	return r
}

// WithHook sets the terminal-state observer.
func (r *Request[T]) WithHook(h Hook) *Request[T] {
	r.hook = h
	return r
}

// Route returns the compiled route.
func (r *Request[T]) Route() Route { return r.route }

// Body returns the outbound body.
func (r *Request[T]) Body() []byte { return r.body }

// Header returns the outbound headers.
func (r *Request[T]) Header() http.Header { return r.header }

// Reason returns the captured audit reason.
func (r *Request[T]) Reason() string { return r.auditReason }

// ShouldQueue reports whether a failed pre-flight check requeues rather
// than cancels.
func (r *Request[T]) ShouldQueue() bool { return r.shouldQueue }

// RunChecks evaluates the pre-flight predicate. Absent predicate passes.
func (r *Request[T]) RunChecks() bool {
	return r.check == nil || r.check()
}

// State returns the current lifecycle state.
func (r *Request[T]) State() State {
	return State(r.state.Load())
}

// Canceled reports whether the request was canceled. The scheduler consults
// this before execution; cancellation never aborts an in-flight exchange.
func (r *Request[T]) Canceled() bool {
	return r.State() == StateCanceled
}

// Cancel moves a pending request to the canceled state. Returns false when
// the request already reached a terminal state.
func (r *Request[T]) Cancel() bool {
	if !r.state.CompareAndSwap(int32(StatePending), int32(StateCanceled)) {
		return false
	}
	r.emit(StateCanceled, nil)
	return true
}

// HandleResponse classifies a completed exchange and fires exactly one
// continuation: transport failures surface their raw error, 429s a
// RateLimitError with the server's backoff, other non-2xx an APIError, and
// 2xx the decoded value (or the decode error).
func (r *Request[T]) HandleResponse(resp *Response) {
	switch {
	case resp.TransportError():
		r.fail(resp, resp.Err())
	case resp.RateLimited():
		r.fail(resp, &RateLimitError{RetryAfter: resp.RetryAfter, Response: resp})
	case !resp.Ok():
		r.fail(resp, newAPIError(resp))
	default:
		val, err := r.decode(resp)
		if err != nil {
			r.fail(resp, err)
			return
		}
		r.succeed(resp, val)
	}
}

func (r *Request[T]) succeed(resp *Response, val T) {
	if !r.state.CompareAndSwap(int32(StatePending), int32(StateSucceeded)) {
		return
	}
	if r.onSuccess != nil {
		r.dispatch(func(ctx context.Context) { r.onSuccess(ctx, val) })
	}
	r.emit(StateSucceeded, resp)
}

func (r *Request[T]) fail(resp *Response, err error) {
	if !r.state.CompareAndSwap(int32(StatePending), int32(StateFailed)) {
		return
	}
	if r.onFailure != nil {
		r.dispatch(func(ctx context.Context) { r.onFailure(ctx, err) })
	}
	r.emit(StateFailed, resp)
}

// dispatch schedules a continuation on the callback executor with the
// captured audit reason re-established in its context. Panics escaping the
// continuation are logged and forwarded to the process-wide panic handler;
// they never propagate back into the library.
func (r *Request[T]) dispatch(fn func(ctx context.Context)) {
	exec := r.exec
	if exec == nil {
		exec = GoExecutor{}
	}
	auditReason := r.auditReason
	route := r.route
	exec.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("rest: callback panic",
					"method", route.Method, "path", route.Path, "panic", p)
				notifyPanic(p)
			}
		}()
		ctx := context.Background()
		if auditReason != "" {
			ctx = reason.With(ctx, auditReason)
		}
		fn(ctx)
	})
}

// emit fires the terminal-state hook. Callers only reach it from the CAS
// that won the terminal transition, so it runs exactly once per request.
func (r *Request[T]) emit(st State, resp *Response) {
	if r.hook == nil {
		return
	}
	r.hook(r.route, st, resp)
}

// panicHandler is the process-wide notification for panics escaping user
// callbacks.
var panicHandler atomic.Value // func(recovered any)

// SetPanicHandler installs the process-wide callback-panic notification.
func SetPanicHandler(fn func(recovered any)) {
	panicHandler.Store(fn)
}

func notifyPanic(p any) {
	fn, _ := panicHandler.Load().(func(any))
	if fn == nil {
		return
	}
	// The notification itself must never take the process down.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("rest: panic handler panicked", "panic", rec)
		}
	}()
	fn(p)
}
