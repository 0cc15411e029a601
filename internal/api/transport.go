package api

import (
	"context"
	"net/http"

	"arvore/internal/logging"

	"github.com/google/uuid"
)

// RequestIDHeader correlates client log lines with server logs.
const RequestIDHeader = "X-Request-ID"

// TokenStore is the persistent side of the session as seen by the transport.
type TokenStore interface {
	Ready(ctx context.Context) error
	Token(ctx context.Context) (string, error)
}

// TokenTransport attaches the stored token to every outgoing request.
//
// Per request it waits for the store to finish initializing, then reads the
// token. Waiting first matters on the first request after launch, which would
// otherwise race the store and go out without credentials.
type TokenTransport struct {
	Base  http.RoundTripper
	Store TokenStore
}

// NewTokenTransport wraps base (http.DefaultTransport when nil).
func NewTokenTransport(base http.RoundTripper, store TokenStore) *TokenTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &TokenTransport{Base: base, Store: store}
}

func (t *TokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	if t.Store != nil {
		if err := t.Store.Ready(ctx); err != nil {
			logging.Get(logging.CategoryAPI).Warn("session store not ready, sending %s %s unauthenticated: %v", req.Method, req.URL.Path, err)
		} else if token, err := t.Store.Token(ctx); err != nil {
			logging.Get(logging.CategoryAPI).Warn("failed to read token, sending unauthenticated: %v", err)
		} else if token != "" {
			out.Header.Set("Authorization", "Token "+token)
		}
	}

	return t.Base.RoundTrip(out)
}
