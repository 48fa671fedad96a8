package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Adapter gives uniform get/set/delete over the cookie and local backends.
// Request-scoped state (the client's cookie jar and its storage scope) is taken
// from the context, so one Adapter serves the whole process.
type Adapter struct {
	kv        KV
	jar       CookieJar
	cookie    CookieOptions
	retention time.Duration
	scoped    bool
	now       func() time.Time
}

type AdapterOption func(*Adapter)

// WithDefaultJar sets the jar used when the context carries none.
func WithDefaultJar(jar CookieJar) AdapterOption {
	return func(a *Adapter) { a.jar = jar }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

// WithRetention keeps local entries in the KV for d past their logical expiry.
// Zero keeps them until deleted, like browser storage.
func WithRetention(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.retention = d }
}

// WithScopeRequired makes local storage unavailable for contexts without a scope.
func WithScopeRequired() AdapterOption {
	return func(a *Adapter) { a.scoped = true }
}

func NewAdapter(kv KV, cookie CookieOptions, opts ...AdapterOption) *Adapter {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	a := &Adapter{kv: kv, cookie: cookie, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// CookieDomain is the resolved cookie-write domain, "" for host-only cookies.
func (a *Adapter) CookieDomain() string { return a.cookie.Domain }

// Available reports whether backend t can be used for this context.
func (a *Adapter) Available(ctx context.Context, t Type) bool {
	switch t {
	case TypeCookie:
		_, err := a.cookies(ctx)
		return err == nil
	case TypeLocal:
		_, _, err := a.local(ctx)
		return err == nil
	}
	return false
}

// Write stores value under key until expiresAt. A zero expiresAt writes a
// session cookie or a local entry without an expiry companion.
func (a *Adapter) Write(ctx context.Context, t Type, key, value string, expiresAt time.Time) error {
	switch t {
	case TypeCookie:
		jar, err := a.cookies(ctx)
		if err != nil {
			return err
		}
		jar.SetCookie(a.newCookie(key, value, expiresAt))
		return nil
	case TypeLocal:
		kv, prefix, err := a.local(ctx)
		if err != nil {
			return err
		}
		k := prefix + key
		if expiresAt.IsZero() {
			// A leftover companion would expire the new value.
			if err = kv.Del(ctx, expiryKey(k)); err != nil {
				return fmt.Errorf("storage: error clearing expiry of %q: %w", key, err)
			}
			if err = kv.Set(ctx, k, value, 0); err != nil {
				return fmt.Errorf("storage: error writing %q: %w", key, err)
			}
			return nil
		}
		err = kv.SetMany(ctx, a.retentionFor(expiresAt),
			Entry{Key: k, Value: value},
			Entry{Key: expiryKey(k), Value: expiresAt.UTC().Format(http.TimeFormat)})
		if err != nil {
			return fmt.Errorf("storage: error writing %q: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// Read returns ErrNotFound for a missing key and ErrExpired for a local entry
// whose expiry has passed. Expired entries are left in place.
func (a *Adapter) Read(ctx context.Context, t Type, key string) (string, error) {
	switch t {
	case TypeCookie:
		jar, err := a.cookies(ctx)
		if err != nil {
			return "", err
		}
		v, ok := jar.Cookie(key)
		if !ok || v == "" {
			return "", ErrNotFound
		}
		return v, nil
	case TypeLocal:
		kv, prefix, err := a.local(ctx)
		if err != nil {
			return "", err
		}
		k := prefix + key
		v, err := kv.Get(ctx, k)
		if err != nil {
			return "", err
		}
		exp, err := kv.Get(ctx, expiryKey(k))
		switch {
		case errors.Is(err, ErrNotFound):
			return v, nil
		case err != nil:
			return "", fmt.Errorf("storage: error reading expiry of %q: %w", key, err)
		}
		if at, ok := parseExpiry(exp); ok && !at.After(a.now()) {
			return "", ErrExpired
		}
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// Delete removes key and, for local storage, its expiry companion.
func (a *Adapter) Delete(ctx context.Context, t Type, key string) error {
	switch t {
	case TypeCookie:
		jar, err := a.cookies(ctx)
		if err != nil {
			return err
		}
		c := a.newCookie(key, "", expiredCookieDate)
		c.MaxAge = -1
		jar.SetCookie(c)
		return nil
	case TypeLocal:
		kv, prefix, err := a.local(ctx)
		if err != nil {
			return err
		}
		k := prefix + key
		if err = kv.Del(ctx, k, expiryKey(k)); err != nil {
			return fmt.Errorf("storage: error deleting %q: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func (a *Adapter) cookies(ctx context.Context) (CookieJar, error) {
	jar := CookieJarFrom(ctx)
	if jar == nil {
		jar = a.jar
	}
	if jar == nil || !jar.Enabled() {
		return nil, ErrUnavailable
	}
	return jar, nil
}

func (a *Adapter) local(ctx context.Context) (KV, string, error) {
	if a.kv == nil {
		return nil, "", ErrUnavailable
	}
	scope := ScopeFrom(ctx)
	if a.scoped && scope == "" {
		return nil, "", ErrUnavailable
	}
	if err := a.kv.Ping(ctx); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if scope == "" {
		return a.kv, "", nil
	}
	return a.kv, scope + ":", nil
}

func (a *Adapter) newCookie(name, value string, expiresAt time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     a.cookie.Path,
		Domain:   a.cookie.Domain,
		Secure:   a.cookie.Secure,
		SameSite: a.cookie.SameSite,
	}
	if !expiresAt.IsZero() {
		c.Expires = expiresAt.UTC()
		if maxAge := int(expiresAt.Sub(a.now()).Seconds()); maxAge > 0 {
			c.MaxAge = maxAge
		} else {
			c.MaxAge = -1
		}
	}
	return c
}

func (a *Adapter) retentionFor(expiresAt time.Time) time.Duration {
	if a.retention <= 0 {
		return 0
	}
	ttl := expiresAt.Sub(a.now()) + a.retention
	if ttl <= 0 {
		return a.retention
	}
	return ttl
}

func parseExpiry(s string) (time.Time, bool) {
	if t, err := http.ParseTime(s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
