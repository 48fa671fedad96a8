package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/pudottapommin/pubcommonid/pkg/pubcid"
	"github.com/pudottapommin/pubcommonid/pkg/storage"
)

// The primary identifier always lives in a cookie: it is the only per-browser
// state the server sees. Local storage is the KV scoped by that identifier.

func (h *handlers) idGET(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.identityConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := storage.WithCookieJar(r.Context(), storage.NewHTTPCookies(w, r))
	res := h.manager.GetID(ctx, cfg, r.URL.Query().Get("gdpr_consent"), h.readPrimary(ctx, cfg))

	data := IDResponseData{ID: res.ID}
	if res.ID != "" {
		ctx = storage.WithScope(ctx, res.ID)
		h.writePrimary(ctx, cfg, res.ID)
	}
	if res.Callback != nil {
		res.Callback(ctx, func(string) { data.Synced = true })
	}
	if res.ID != "" {
		d := h.manager.Decode(ctx, res.ID, cfg)
		data.Decoded = &d
	}
	h.writeJSON(w, http.StatusOK, data)
}

func (h *handlers) extendGET(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.identityConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := storage.WithCookieJar(r.Context(), storage.NewHTTPCookies(w, r))
	stored := h.readPrimary(ctx, cfg)
	if stored == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ctx = storage.WithScope(ctx, stored)

	res := h.manager.ExtendID(ctx, cfg, stored)
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if res.ID != "" {
		h.writePrimary(ctx, cfg, res.ID)
	}
	if res.Callback != nil {
		res.Callback(ctx, nil)
	}
	h.writeJSON(w, http.StatusOK, ExtendResponseData{ID: res.ID, Pixel: res.Callback != nil})
}

func (h *handlers) decodeGET(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.identityConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := storage.WithCookieJar(r.Context(), storage.NewHTTPCookies(w, r))
	stored := h.readPrimary(ctx, cfg)
	if stored == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.manager.Decode(storage.WithScope(ctx, stored), stored, cfg))
}

func (h *handlers) healthGET(w http.ResponseWriter, r *http.Request) {
	if h.kv == nil {
		h.writeJSON(w, http.StatusOK, HealthResponseData{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.kv.Ping(ctx); err != nil {
		h.l.Error("kv health check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, HealthResponseData{Status: "unavailable", Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, HealthResponseData{Status: "ok"})
}

// identityConfig applies query overrides on top of the configured defaults.
func (h *handlers) identityConfig(r *http.Request) (pubcid.Config, error) {
	cfg := h.cfg.Load().Pubcid()
	q := r.URL.Query()
	if v := q.Get("storage_type"); v != "" {
		t, err := storage.ParseType(v)
		if err != nil {
			return cfg, err
		}
		cfg.Storage.Type = t
	}
	if v := q.Get("name"); v != "" {
		cfg.Storage.Name = v
	}
	for name, dst := range map[string]*bool{
		"create": &cfg.Params.Create,
		"extend": &cfg.Params.Extend,
		"shared": &cfg.Params.EnableSharedID,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("invalid " + name + " value")
		}
		*dst = b
	}
	return cfg, nil
}

func (h *handlers) readPrimary(ctx context.Context, cfg pubcid.Config) string {
	v, err := h.adapter.Read(ctx, storage.TypeCookie, cfg.Storage.Name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.l.Warn("failed to read primary id", "name", cfg.Storage.Name, "error", err)
	}
	return v
}

func (h *handlers) writePrimary(ctx context.Context, cfg pubcid.Config, id string) {
	days := h.cfg.Load().Identity.PrimaryExpirationDays
	expiresAt := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	if err := h.adapter.Write(ctx, storage.TypeCookie, cfg.Storage.Name, id, expiresAt); err != nil {
		h.l.Warn("failed to write primary id", "name", cfg.Storage.Name, "error", err)
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		h.l.Error("failed to encode response", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.l.Error("failed to write response", "error", err)
	}
}
