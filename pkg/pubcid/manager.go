// Package pubcid manages the lifecycle of the publisher common identifier:
// creating or recovering it, extending it, and decoding it together with the
// shared identifier persisted by package sharedid.
package pubcid

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pudottapommin/pubcommonid/pkg/sharedid"
)

// Identifier sources reported to a Recorder.
const (
	SourceStored   = "stored"
	SourceExternal = "external"
	SourceMinted   = "minted"
	SourceNone     = "none"
)

// Extend outcomes reported to a Recorder.
const (
	ExtendDisabled  = "disabled"
	ExtendExternal  = "external"
	ExtendPixel     = "pixel"
	ExtendRefreshed = "refreshed"
)

type (
	// Callback is the deferred action returned to the host. The host calls it at
	// most once; done, when set, receives the primary identifier once the shared
	// identifier sync has settled.
	Callback func(ctx context.Context, done func(id string))

	Result struct {
		ID       string
		Callback Callback
	}

	// PrimaryIDSource is an identifier provider already present in the host
	// environment. GetID returns "" when it has none.
	PrimaryIDSource interface {
		GetID() string
	}

	Decoded struct {
		PubcID   string    `json:"pubcid"`
		SharedID *SharedID `json:"sharedid,omitempty"`
	}

	SharedID struct {
		ID string `json:"id"`
	}

	Recorder interface {
		IDResolved(source string)
		IDExtended(outcome string)
	}
)

type Manager struct {
	store        *sharedid.Store
	sync         *sharedid.SyncClient
	firer        Firer
	source       PrimaryIDSource
	deviceAccess func(ctx context.Context) bool
	newID        func() string
	rec          Recorder
	l            *slog.Logger
}

type Option func(*Manager)

func WithSyncClient(c *sharedid.SyncClient) Option {
	return func(m *Manager) { m.sync = c }
}

func WithFirer(f Firer) Option {
	return func(m *Manager) { m.firer = f }
}

// WithPrimaryIDSource injects an identifier provider that owns the primary
// identifier whenever it is present.
func WithPrimaryIDSource(src PrimaryIDSource) Option {
	return func(m *Manager) { m.source = src }
}

// WithDeviceAccess reports whether the environment allows device storage.
// Identifiers are only minted when it returns true.
func WithDeviceAccess(fn func(ctx context.Context) bool) Option {
	return func(m *Manager) { m.deviceAccess = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

func WithRecorder(rec Recorder) Option {
	return func(m *Manager) { m.rec = rec }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.l = l }
}

func NewManager(store *sharedid.Store, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		deviceAccess: func(context.Context) bool { return true },
		newID:        uuid.NewString,
		l:            slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.firer == nil {
		m.firer = NewHTTPFirer(nil, m.l)
	}
	if m.sync == nil {
		m.sync = sharedid.NewSyncClient(sharedid.NewHTTPTransport(nil), store, sharedid.WithSyncLogger(m.l))
	}
	return m
}

// GetID resolves the primary identifier and the callback the host runs later.
// consent is opaque to the manager.
func (m *Manager) GetID(ctx context.Context, cfg Config, consent any, storedID string) Result {
	id, source := m.resolve(ctx, cfg, storedID)
	m.resolved(source)
	m.l.Debug("resolved primary id", "source", source, "shared", cfg.Params.EnableSharedID)

	pixel := m.pixel(cfg.Params.PixelURL, id)
	if !cfg.Params.EnableSharedID {
		return Result{ID: id, Callback: pixel}
	}

	storageCfg := cfg.Storage
	sync := m.sync
	return Result{ID: id, Callback: func(ctx context.Context, done func(string)) {
		if pixel != nil {
			pixel(ctx, nil)
		}
		sync.Sync(ctx, storageCfg, id, done)
	}}
}

// ExtendID renews the identifiers without minting. It returns nil when extend
// is off or when an external source owns the primary identifier.
func (m *Manager) ExtendID(ctx context.Context, cfg Config, storedID string) *Result {
	if !cfg.Params.Extend {
		m.extended(ExtendDisabled)
		return nil
	}
	if m.source != nil {
		if cfg.Params.EnableSharedID {
			m.store.Refresh(ctx, cfg.Storage)
		}
		m.extended(ExtendExternal)
		return nil
	}
	// The pixel endpoint renews the identifier server side; returning the id
	// here would overwrite that expiry with a client-side one. An unusable
	// pixel url still withholds the id.
	if cfg.Params.PixelURL != "" {
		m.extended(ExtendPixel)
		return &Result{Callback: m.pixel(cfg.Params.PixelURL, storedID)}
	}
	if cfg.Params.EnableSharedID {
		m.store.Refresh(ctx, cfg.Storage)
	}
	m.extended(ExtendRefreshed)
	return &Result{ID: storedID}
}

// Decode never touches the network and reads storage only when the shared
// identifier is enabled.
func (m *Manager) Decode(ctx context.Context, value string, cfg Config) Decoded {
	d := Decoded{PubcID: value}
	if !cfg.Params.EnableSharedID {
		return d
	}
	if v, ok := m.store.Load(ctx, cfg.Storage); ok {
		d.SharedID = &SharedID{ID: v}
	}
	return d
}

func (m *Manager) resolve(ctx context.Context, cfg Config, storedID string) (string, string) {
	if storedID != "" {
		return storedID, SourceStored
	}
	if m.source != nil {
		if id := m.source.GetID(); id != "" {
			return id, SourceExternal
		}
	}
	if cfg.Params.Create && m.deviceAccess(ctx) {
		return m.newID(), SourceMinted
	}
	return "", SourceNone
}

func (m *Manager) resolved(source string) {
	if m.rec != nil {
		m.rec.IDResolved(source)
	}
}

func (m *Manager) extended(outcome string) {
	if m.rec != nil {
		m.rec.IDExtended(outcome)
	}
}
