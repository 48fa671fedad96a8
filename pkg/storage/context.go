package storage

import "context"

type contextKeyCookieJar struct{}
type contextKeyScope struct{}

// WithCookieJar attaches the cookie view of the current client to ctx.
func WithCookieJar(ctx context.Context, jar CookieJar) context.Context {
	return context.WithValue(ctx, contextKeyCookieJar{}, jar)
}

// CookieJarFrom returns the jar attached to ctx, or nil.
func CookieJarFrom(ctx context.Context) CookieJar {
	if jar, ok := ctx.Value(contextKeyCookieJar{}).(CookieJar); ok {
		return jar
	}
	return nil
}

// WithScope partitions local storage keys for one client, so a shared KV can
// stand in for per-browser storage.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, contextKeyScope{}, scope)
}

// ScopeFrom returns the scope attached to ctx, or "".
func ScopeFrom(ctx context.Context) string {
	if scope, ok := ctx.Value(contextKeyScope{}).(string); ok {
		return scope
	}
	return ""
}
