package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type AdapterSuite struct {
	suite.Suite
	kv      *MemoryKV
	now     time.Time
	adapter *Adapter
	rec     *httptest.ResponseRecorder
	ctx     context.Context
}

func (s *AdapterSuite) SetupTest() {
	s.kv = NewMemoryKV()
	s.now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s.adapter = NewAdapter(s.kv, CookieOptions{Domain: "example.com"}, WithClock(func() time.Time { return s.now }))
	s.rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "https://www.example.com/", nil)
	s.ctx = WithCookieJar(context.Background(), NewHTTPCookies(s.rec, req))
}

func TestAdapterSuite(t *testing.T) {
	suite.Run(t, new(AdapterSuite))
}

func (s *AdapterSuite) responseCookie(name string) *http.Cookie {
	var found *http.Cookie
	res := http.Response{Header: s.rec.Header()}
	for _, c := range res.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func (s *AdapterSuite) TestLocal() {
	s.Run("writes value and expiry companion", func() {
		expiresAt := s.now.Add(30 * 24 * time.Hour)
		s.Require().NoError(s.adapter.Write(s.ctx, TypeLocal, "pubcid_sharedid", "abc123", expiresAt))

		v, err := s.kv.Get(s.ctx, "pubcid_sharedid")
		s.Require().NoError(err)
		s.Equal("abc123", v)
		exp, err := s.kv.Get(s.ctx, "pubcid_sharedid_exp")
		s.Require().NoError(err)
		s.Equal(expiresAt.Format(http.TimeFormat), exp)

		got, err := s.adapter.Read(s.ctx, TypeLocal, "pubcid_sharedid")
		s.Require().NoError(err)
		s.Equal("abc123", got)
	})

	s.Run("reports expired entries without deleting them", func() {
		s.Require().NoError(s.adapter.Write(s.ctx, TypeLocal, "old", "v", s.now.Add(-time.Minute)))

		_, err := s.adapter.Read(s.ctx, TypeLocal, "old")
		s.Require().ErrorIs(err, ErrExpired)
		_, err = s.kv.Get(s.ctx, "old")
		s.NoError(err)
		_, err = s.kv.Get(s.ctx, "old_exp")
		s.NoError(err)
		s.Require().NoError(s.adapter.Delete(s.ctx, TypeLocal, "old"))
	})

	s.Run("returns legacy entries without expiry unconditionally", func() {
		s.Require().NoError(s.kv.Set(s.ctx, "legacy", "v1", 0))
		got, err := s.adapter.Read(s.ctx, TypeLocal, "legacy")
		s.Require().NoError(err)
		s.Equal("v1", got)
	})

	s.Run("accepts RFC 3339 expiry strings", func() {
		s.Require().NoError(s.kv.Set(s.ctx, "iso", "v2", 0))
		s.Require().NoError(s.kv.Set(s.ctx, "iso_exp", s.now.Add(time.Hour).Format(time.RFC3339), 0))
		got, err := s.adapter.Read(s.ctx, TypeLocal, "iso")
		s.Require().NoError(err)
		s.Equal("v2", got)
	})

	s.Run("delete removes both entries", func() {
		s.Require().NoError(s.adapter.Write(s.ctx, TypeLocal, "gone", "v", s.now.Add(time.Hour)))
		s.Require().NoError(s.adapter.Delete(s.ctx, TypeLocal, "gone"))

		_, err := s.kv.Get(s.ctx, "gone")
		s.ErrorIs(err, ErrNotFound)
		_, err = s.kv.Get(s.ctx, "gone_exp")
		s.ErrorIs(err, ErrNotFound)
	})

	s.Run("write without expiry drops a stale companion", func() {
		s.Require().NoError(s.adapter.Write(s.ctx, TypeLocal, "reset", "v1", s.now.Add(-time.Hour)))
		s.Require().NoError(s.adapter.Write(s.ctx, TypeLocal, "reset", "v2", time.Time{}))

		got, err := s.adapter.Read(s.ctx, TypeLocal, "reset")
		s.Require().NoError(err)
		s.Equal("v2", got)
		_, err = s.kv.Get(s.ctx, "reset_exp")
		s.ErrorIs(err, ErrNotFound)
	})

	s.Run("missing key is not found", func() {
		_, err := s.adapter.Read(s.ctx, TypeLocal, "missing")
		s.ErrorIs(err, ErrNotFound)
	})
}

func (s *AdapterSuite) TestScope() {
	adapter := NewAdapter(s.kv, CookieOptions{}, WithScopeRequired(), WithClock(func() time.Time { return s.now }))

	s.Run("unscoped context is unavailable", func() {
		err := adapter.Write(context.Background(), TypeLocal, "k", "v", time.Time{})
		s.ErrorIs(err, ErrUnavailable)
		s.False(adapter.Available(context.Background(), TypeLocal))
	})

	s.Run("scopes partition keys", func() {
		a := WithScope(context.Background(), "device-a")
		b := WithScope(context.Background(), "device-b")
		s.Require().NoError(adapter.Write(a, TypeLocal, "k", "va", s.now.Add(time.Hour)))

		got, err := adapter.Read(a, TypeLocal, "k")
		s.Require().NoError(err)
		s.Equal("va", got)
		_, err = adapter.Read(b, TypeLocal, "k")
		s.ErrorIs(err, ErrNotFound)

		raw, err := s.kv.Get(context.Background(), "device-a:k")
		s.Require().NoError(err)
		s.Equal("va", raw)
	})
}

func (s *AdapterSuite) TestCookie() {
	s.Run("writes a cookie at the resolved domain", func() {
		expiresAt := s.now.Add(24 * time.Hour)
		s.Require().NoError(s.adapter.Write(s.ctx, TypeCookie, "_pubcid", "id-1", expiresAt))

		c := s.responseCookie("_pubcid")
		s.Require().NotNil(c)
		s.Equal("id-1", c.Value)
		s.Equal("example.com", c.Domain)
		s.Equal("/", c.Path)
		s.Equal(http.SameSiteLaxMode, c.SameSite)
		s.Equal(86400, c.MaxAge)

		got, err := s.adapter.Read(s.ctx, TypeCookie, "_pubcid")
		s.Require().NoError(err)
		s.Equal("id-1", got)
	})

	s.Run("delete writes an expired cookie", func() {
		s.Require().NoError(s.adapter.Delete(s.ctx, TypeCookie, "_pubcid"))

		c := s.responseCookie("_pubcid")
		s.Require().NotNil(c)
		s.Equal("", c.Value)
		s.Less(c.MaxAge, 0)
		_, err := s.adapter.Read(s.ctx, TypeCookie, "_pubcid")
		s.ErrorIs(err, ErrNotFound)
	})

	s.Run("reads request cookies", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "_pubcid", Value: "from-request"})
		ctx := WithCookieJar(context.Background(), NewHTTPCookies(httptest.NewRecorder(), req))

		got, err := s.adapter.Read(ctx, TypeCookie, "_pubcid")
		s.Require().NoError(err)
		s.Equal("from-request", got)
	})

	s.Run("no jar means cookies are unavailable", func() {
		err := s.adapter.Write(context.Background(), TypeCookie, "_pubcid", "x", time.Time{})
		s.ErrorIs(err, ErrUnavailable)
		_, err = s.adapter.Read(context.Background(), TypeCookie, "_pubcid")
		s.ErrorIs(err, ErrUnavailable)
	})
}

type downKV struct{ *MemoryKV }

func (downKV) Ping(context.Context) error { return errors.New("connection refused") }

func (s *AdapterSuite) TestUnavailableKV() {
	adapter := NewAdapter(downKV{NewMemoryKV()}, CookieOptions{})

	err := adapter.Write(s.ctx, TypeLocal, "k", "v", time.Time{})
	s.ErrorIs(err, ErrUnavailable)
	_, err = adapter.Read(s.ctx, TypeLocal, "k")
	s.ErrorIs(err, ErrUnavailable)
	s.ErrorIs(adapter.Delete(s.ctx, TypeLocal, "k"), ErrUnavailable)

	s.ErrorIs(NewAdapter(nil, CookieOptions{}).Delete(s.ctx, TypeLocal, "k"), ErrUnavailable)
}

// expiryFailingKV rejects every write touching an expiry companion.
type expiryFailingKV struct{ *MemoryKV }

func (f expiryFailingKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return f.SetMany(ctx, ttl, Entry{Key: key, Value: value})
}

func (f expiryFailingKV) SetMany(ctx context.Context, ttl time.Duration, entries ...Entry) error {
	for _, e := range entries {
		if strings.HasSuffix(e.Key, expirySuffix) {
			return errors.New("write rejected")
		}
	}
	return f.MemoryKV.SetMany(ctx, ttl, entries...)
}

func (s *AdapterSuite) TestFailedExpiryWriteLeavesNoValue() {
	kv := expiryFailingKV{NewMemoryKV()}
	adapter := NewAdapter(kv, CookieOptions{}, WithClock(func() time.Time { return s.now }))

	err := adapter.Write(s.ctx, TypeLocal, "pubcid_sharedid", "abc123", s.now.Add(time.Hour))
	s.Require().Error(err)

	_, err = adapter.Read(s.ctx, TypeLocal, "pubcid_sharedid")
	s.ErrorIs(err, ErrNotFound)
	s.Zero(kv.Len())
}

func (s *AdapterSuite) TestUnknownType() {
	err := s.adapter.Write(s.ctx, Type("indexeddb"), "k", "v", time.Time{})
	s.ErrorIs(err, ErrUnknownType)
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"cookie":       TypeCookie,
		"html5":        TypeLocal,
		"LocalStorage": TypeLocal,
		" local ":      TypeLocal,
	} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseType("session"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ParseType(session) err = %v", err)
	}
}
