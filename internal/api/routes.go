package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/alexedwards/flow"

	"github.com/pudottapommin/pubcommonid/config"
	"github.com/pudottapommin/pubcommonid/pkg/pubcid"
	"github.com/pudottapommin/pubcommonid/pkg/storage"
)

type handlers struct {
	l       *slog.Logger
	cfg     *atomic.Pointer[config.Config]
	adapter *storage.Adapter
	manager *pubcid.Manager
	kv      storage.KV
}

func NewHandlers(cfg *atomic.Pointer[config.Config], adapter *storage.Adapter, manager *pubcid.Manager, kv storage.KV, l *slog.Logger) *handlers {
	return &handlers{cfg: cfg, adapter: adapter, manager: manager, kv: kv, l: l}
}

func (h *handlers) AddHandlers(e *flow.Mux) {
	e.Group(func(g *flow.Mux) {
		g.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Cache-Control", "no-store")
				next.ServeHTTP(w, r)
			})
		})

		g.HandleFunc("/api/id", h.idGET, "GET")
		g.HandleFunc("/api/extend", h.extendGET, "GET")
		g.HandleFunc("/api/decode", h.decodeGET, "GET")
	})
	e.HandleFunc("/healthz", h.healthGET, "GET")
}
