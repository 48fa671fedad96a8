package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/alexedwards/flow"
	"github.com/pudottapommin/golib/http/middleware/compressor"
	"github.com/pudottapommin/golib/http/middleware/logger"
	"github.com/pudottapommin/golib/http/middleware/requestid"
	"github.com/valkey-io/valkey-go"

	"github.com/pudottapommin/pubcommonid/config"
	"github.com/pudottapommin/pubcommonid/internal/api"
	"github.com/pudottapommin/pubcommonid/internal/metrics"
	"github.com/pudottapommin/pubcommonid/pkg/cookiedomain"
	"github.com/pudottapommin/pubcommonid/pkg/pubcid"
	"github.com/pudottapommin/pubcommonid/pkg/server"
	"github.com/pudottapommin/pubcommonid/pkg/sharedid"
	"github.com/pudottapommin/pubcommonid/pkg/storage"
)

type App struct {
	*server.Server
	cfg     *atomic.Pointer[config.Config]
	l       *slog.Logger
	metrics *metrics.Metrics
	closers []func()
}

func New(ctx context.Context, cfg *atomic.Pointer[config.Config], l *slog.Logger) *App {
	return &App{
		Server:  server.New(ctx, flow.New(), cfg.Load().Server.ReadHeaderTimeout),
		cfg:     cfg,
		l:       l,
		metrics: metrics.New(),
	}
}

func (a *App) Run() (err error) {
	defer a.close()

	if err = a.Setup(); err != nil {
		return err
	}

	addr := a.cfg.Load().Server.Host
	a.l.Debug("Server started", "address", addr)
	return a.Server.Run(addr)
}

// Setup wires middlewares, backends and routes onto the mux.
func (a *App) Setup() error {
	cfg := a.cfg.Load()

	a.E().Use(
		requestid.New().Handler,
		logger.New(logger.WithLogger(a.l, "[HTTP]"), logger.WithNext(func(w http.ResponseWriter, r *http.Request) bool {
			return r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/metrics")
		})).Handler,
		compressor.MustNew(),
	)

	kv, err := a.newKV(a.Ctx(), cfg)
	if err != nil {
		return err
	}

	domain, err := cookiedomain.Resolve(cfg.Server.CookieHost, cfg.DomainPolicy())
	if err != nil {
		return fmt.Errorf("failed to resolve cookie domain: %w", err)
	}
	a.l.Debug("resolved cookie domain", "host", cfg.Server.CookieHost, "domain", domain)

	adapter := storage.NewAdapter(kv, storage.CookieOptions{
		Domain: domain,
		Secure: cfg.Server.CookieSecure,
	}, storage.WithScopeRequired(), storage.WithRetention(cfg.KV.Retention))

	store := sharedid.NewStore(adapter,
		sharedid.WithExpirationDays(cfg.Identity.ExpirationDays),
		sharedid.WithStoreLogger(a.l))
	syncer := sharedid.NewSyncClient(sharedid.NewHTTPTransport(nil), store,
		sharedid.WithEndpoint(cfg.Identity.SyncEndpoint),
		sharedid.WithRecorder(a.metrics),
		sharedid.WithSyncLogger(a.l))
	manager := pubcid.NewManager(store,
		pubcid.WithSyncClient(syncer),
		pubcid.WithFirer(pubcid.NewHTTPFirer(nil, a.l)),
		pubcid.WithDeviceAccess(func(context.Context) bool { return a.cfg.Load().Identity.DeviceAccess }),
		pubcid.WithRecorder(a.metrics),
		pubcid.WithLogger(a.l))

	h := api.NewHandlers(a.cfg, adapter, manager, kv, a.l)
	h.AddHandlers(a.E())

	a.E().Group(func(r *flow.Mux) {
		if cfg.Auth.IsEnabled {
			r.Use(server.BasicAuth(cfg.Auth.Username, cfg.Auth.Password))
		}
		r.Handle("/metrics", a.metrics.Handler(), "GET")
	})
	return nil
}

func (a *App) newKV(ctx context.Context, cfg *config.Config) (kv storage.KV, err error) {
	switch cfg.KV.Driver {
	case config.DriverMemory:
		kv = storage.NewMemoryKV()
	case config.DriverValkey:
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.KV.Addr}})
		if err != nil {
			return nil, fmt.Errorf("failed to create valkey client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		kv = storage.NewValkey(client, cfg.KV.Prefix)
	case config.DriverRedis:
		rkv, err := storage.NewRedisFromURL(ctx, cfg.KV.Addr, cfg.KV.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rkv.Close() })
		kv = rkv
	default:
		return nil, errors.New("unknown kv driver " + cfg.KV.Driver)
	}

	key, err := cfg.SealKey()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return kv, nil
	}
	return storage.NewSealed(kv, key)
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Shutdown(ctx context.Context) error {
	defer a.close()
	return a.Server.Shutdown(ctx)
}
