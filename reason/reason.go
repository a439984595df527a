// Package reason carries the audit-log reason attached to mutating API
// calls. The reason travels as a context value: a request snapshots it at
// construction on the calling goroutine, and the library re-establishes it
// in the context handed to completion callbacks, so the annotation survives
// the hop onto the callback pool.
package reason

import "context"

type ctxKey struct{}

// Header is the request header the reason is sent in.
const Header = "X-Audit-Log-Reason"

// With returns a context carrying the given audit reason. An empty reason
// clears any reason set further up the chain.
func With(ctx context.Context, r string) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// From returns the audit reason carried by ctx, or "" when none is set.
func From(ctx context.Context) string {
	r, _ := ctx.Value(ctxKey{}).(string)
	return r
}
