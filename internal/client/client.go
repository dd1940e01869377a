package client

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// key type for context
type contextKey string

const clientKey contextKey = "client"

// Header lets callers name themselves explicitly.
const Header = "X-Client-Id"

// Source says where a client identity came from.
type Source string

const (
	SourceHeader    Source = "header"
	SourceForwarded Source = "forwarded"
	SourceRemote    Source = "remote"
)

// Client identifies the caller for rate limiting and logging.
type Client struct {
	ID     string
	Source Source
}

// FromContext returns the client attached by Middleware.
func FromContext(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(clientKey).(Client)
	return c, ok
}

// IDFromContext returns the client ID, or "" if none is attached.
func IDFromContext(ctx context.Context) string {
	c, _ := FromContext(ctx)
	return c.ID
}

// WithClient attaches c to ctx.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}

// Identify resolves the caller: X-Client-Id first, then the first
// X-Forwarded-For hop, then the remote address host.
func Identify(r *http.Request) Client {
	if id := strings.TrimSpace(r.Header.Get(Header)); id != "" {
		return Client{ID: id, Source: SourceHeader}
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return Client{ID: ip, Source: SourceForwarded}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return Client{ID: host, Source: SourceRemote}
}

// Middleware identifies the caller and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), Identify(r))))
	})
}
