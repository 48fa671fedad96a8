package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type (
	// Type selects the physical backend an identifier is written to.
	Type string

	// Config is the storage half of an identifier configuration.
	Config struct {
		Type           Type   `json:"type"`
		Name           string `json:"name"`
		ExpirationDays int    `json:"expirationDays"`
	}

	// KV is a persistent key-value backend standing in for browser local storage.
	KV interface {
		// Get returns ErrNotFound when the key is absent.
		Get(ctx context.Context, key string) (string, error)
		// Set stores value; ttl <= 0 keeps the entry until deleted.
		Set(ctx context.Context, key, value string, ttl time.Duration) error
		// SetMany stores every entry with the same ttl, or none of them.
		SetMany(ctx context.Context, ttl time.Duration, entries ...Entry) error
		Del(ctx context.Context, keys ...string) error
		Ping(ctx context.Context) error
	}

	Entry struct {
		Key   string
		Value string
	}

	// CookieJar is the cookie view of a single client.
	CookieJar interface {
		Enabled() bool
		Cookie(name string) (string, bool)
		SetCookie(c *http.Cookie)
	}

	// CookieOptions are the process-wide attributes of every cookie write.
	CookieOptions struct {
		Domain   string
		Path     string
		SameSite http.SameSite
		Secure   bool
	}
)

const (
	TypeCookie Type = "cookie"
	TypeLocal  Type = "html5"

	expirySuffix = "_exp"
)

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrExpired     = errors.New("storage: expired")
	ErrUnavailable = errors.New("storage: backend unavailable")
	ErrUnknownType = errors.New("storage: unknown type")

	expiredCookieDate = time.Date(1970, time.January, 1, 0, 0, 1, 0, time.UTC)
)

// ParseType accepts the names browsers and ad tags use for the two backends.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cookie", "cookies":
		return TypeCookie, nil
	case "html5", "local", "localstorage":
		return TypeLocal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Type) String() string { return string(t) }

func expiryKey(key string) string { return key + expirySuffix }
