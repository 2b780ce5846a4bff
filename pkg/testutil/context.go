package testutil

import (
	"context"
	"net/http"
	"time"

	"bloodbank/pkg/requestcontext"
)

// ContextAt returns a context whose request time is pinned to now.
// Services read the clock from the context, so tests control expiry
// derivation and FEFO ordering by choosing this value.
func ContextAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

// ContextWithActor pins both the request time and the acting staff member.
// This simulates what the auth middleware does for authenticated requests.
func ContextWithActor(now time.Time, actor string) context.Context {
	return requestcontext.WithActor(ContextAt(now), actor)
}

// RequestAt stamps a request time onto an HTTP request, simulating the
// request-time middleware.
func RequestAt(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
