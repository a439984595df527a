package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/victorivanov/retrograde/ratelimit"
)

// Queueable is what the Requester schedules: the non-generic face of
// Request[T].
type Queueable interface {
	Route() Route
	Body() []byte
	Header() http.Header
	Reason() string
	ShouldQueue() bool
	RunChecks() bool
	Canceled() bool
	Cancel() bool
	HandleResponse(*Response)
}

const (
	defaultWorkers  = 4
	defaultQueueLen = 256
	maxAttempts     = 4
)

// Options configures a Requester. Zero fields take defaults.
type Options struct {
	// BaseURL is prepended to every route path.
	BaseURL string
	// Token, when set, is sent as the Authorization header.
	Token string
	// UserAgent overrides the default User-Agent.
	UserAgent string
	// Transport executes exchanges. Defaults to a FastHTTPTransport.
	Transport Transport
	// Limiter tracks per-route buckets. Nil disables bucket limiting.
	Limiter *ratelimit.Limiter
	// GlobalRate caps total outbound requests per second. Zero disables it.
	GlobalRate rate.Limit
	// Workers is the number of scheduler goroutines.
	Workers int
}

// Requester drains a queue of pending requests through the rate limiter and
// transport. Requests wait for their route bucket and the global limiter
// before executing; rate limit headers on every reply feed back into the
// bucket store.
type Requester struct {
	baseURL   string
	token     string
	userAgent string
	transport Transport
	limiter   *ratelimit.Limiter
	global    *rate.Limiter

	queue  chan queued
	wg     sync.WaitGroup
	cancel context.CancelFunc

	closeOnce sync.Once
}

type queued struct {
	req      Queueable
	attempts int
}

// NewRequester starts the scheduler goroutines. Close releases them.
func NewRequester(opts Options) *Requester {
	if opts.Transport == nil {
		opts.Transport = NewFastHTTPTransport(2)
	}
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "retrograde"
	}

	var global *rate.Limiter
	if opts.GlobalRate > 0 {
		global = rate.NewLimiter(opts.GlobalRate, int(opts.GlobalRate))
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Requester{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		token:     opts.Token,
		userAgent: opts.UserAgent,
		transport: opts.Transport,
		limiter:   opts.Limiter,
		global:    global,
		queue:     make(chan queued, defaultQueueLen),
		cancel:    cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	return r
}

// Queue schedules a request for execution. Returns false once the requester
// is closed or the queue is full; the request is left pending either way.
func (r *Requester) Queue(req Queueable) bool {
	return r.enqueue(queued{req: req})
}

func (r *Requester) enqueue(q queued) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case r.queue <- q:
		return true
	default:
		return false
	}
}

// Close stops the workers. Requests still in the queue are canceled.
func (r *Requester) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
		close(r.queue)
		for q := range r.queue {
			q.req.Cancel()
		}
	})
}

func (r *Requester) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-r.queue:
			r.process(ctx, q)
		}
	}
}

func (r *Requester) process(ctx context.Context, q queued) {
	req := q.req
	if req.Canceled() {
		return
	}
	if !req.RunChecks() {
		if req.ShouldQueue() {
			// Small backoff so a persistently failing check does not spin
			// the worker.
			r.requeueAfter(ctx, queued{req: req, attempts: q.attempts}, 10*time.Millisecond)
		} else {
			req.Cancel()
		}
		return
	}

	route := req.Route()
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, route.Bucket); err != nil {
			if ctx.Err() != nil {
				req.Cancel()
				return
			}
			slog.Warn("rest: bucket wait failed, proceeding", "bucket", route.Bucket, "error", err)
		}
	}
	if r.global != nil {
		if err := r.global.Wait(ctx); err != nil {
			req.Cancel()
			return
		}
	}
	if req.Canceled() {
		return
	}

	resp, err := r.exchange(ctx, req, route)
	if err != nil {
		req.HandleResponse(NewTransportError(err))
		return
	}

	if r.limiter != nil {
		r.limiter.Observe(ctx, route.Bucket, resp.Header)
	}

	if resp.RateLimited() && q.attempts+1 < maxAttempts {
		slog.Warn("rest: rate limited, requeueing",
			"bucket", route.Bucket, "retry_after", resp.RetryAfter, "attempt", q.attempts+1)
		r.requeueAfter(ctx, queued{req: req, attempts: q.attempts + 1}, resp.RetryAfter)
		return
	}

	req.HandleResponse(resp)
}

func (r *Requester) exchange(ctx context.Context, req Queueable, route Route) (*Response, error) {
	header := http.Header{}
	for k, v := range req.Header() {
		header[k] = v
	}
	if r.token != "" && header.Get("Authorization") == "" {
		header.Set("Authorization", "Bearer "+r.token)
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", r.userAgent)
	}
	if len(req.Body()) > 0 && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	return r.transport.Do(ctx, route.Method, r.baseURL+route.Path, header, req.Body())
}

// requeueAfter waits out the server's backoff before putting the request
// back on the queue. The wait happens on its own goroutine so a backoff on
// one bucket does not stall the worker.
func (r *Requester) requeueAfter(ctx context.Context, q queued, wait time.Duration) {
	if wait <= 0 {
		if !r.enqueue(q) {
			q.req.Cancel()
		}
		return
	}
	go func() {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			q.req.Cancel()
		case <-t.C:
			if !r.enqueue(q) {
				q.req.Cancel()
			}
		}
	}()
}
