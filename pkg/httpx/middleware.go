// Package httpx carries the HTTP middleware used in front of token-guarded
// handlers: bearer authentication, role and permission checks, and per-key
// rate limiting.
package httpx

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware = func(http.Handler) http.Handler

// Chain applies middlewares to h in order, so the first middleware listed is
// the outermost one at request time.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
