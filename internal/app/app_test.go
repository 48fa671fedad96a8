package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pudottapommin/pubcommonid/config"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := &config.Config{
		Server: config.Server{CookieHost: "www.example.com", DomainPolicy: "broadest"},
		KV:     config.KV{Driver: config.DriverMemory, Prefix: "pubcid:"},
		Identity: config.Identity{
			StorageType:           "cookie",
			StorageName:           "_pubcid",
			ExpirationDays:        30,
			PrimaryExpirationDays: 365,
			Create:                true,
			DeviceAccess:          true,
		},
		Auth: config.Auth{Username: "admin", Password: "secret"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	p := new(atomic.Pointer[config.Config])
	p.Store(cfg)

	a := New(context.Background(), p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, a.Setup())
	t.Cleanup(a.close)
	return a
}

func TestAppRoutes(t *testing.T) {
	a := newTestApp(t, nil)

	w := httptest.NewRecorder()
	a.E().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.E().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "https://www.example.com/api/id", nil))
	require.Equal(t, http.StatusOK, w.Code)
	setCookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "_pubcid=")
	assert.Contains(t, setCookie, "Domain=example.com")

	w = httptest.NewRecorder()
	a.E().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pubcid_ids_resolved_total")
}

func TestAppMetricsAuth(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.Auth.IsEnabled = true })

	w := httptest.NewRecorder()
	a.E().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	a.E().ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAppSealedMemoryKV(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.KV.SealKey = "MDEyMzQ1Njc4OWFiY2RlZg==" })

	w := httptest.NewRecorder()
	a.E().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
