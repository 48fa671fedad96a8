// Package sharedid persists the secondary identifier and keeps it in step with
// the sync endpoint.
package sharedid

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pudottapommin/pubcommonid/pkg/storage"
)

const (
	// OptOut is the value the sync peer returns for users who opted out.
	OptOut = "0000000000000000000000000000"
	// Suffix is appended to the storage name to form the record key.
	Suffix = "_sharedid"

	DefaultExpirationDays = 30
	// MaxExpirationDays caps lifetimes so the expiry stays representable.
	MaxExpirationDays = 36500
)

// Store reads and writes the secondary identifier record. Failures are logged
// and degrade to no-op or absent.
type Store struct {
	adapter *storage.Adapter
	days    int
	now     func() time.Time
	l       *slog.Logger
}

type StoreOption func(*Store)

// WithExpirationDays sets the process-wide lifetime used when a config leaves
// ExpirationDays unset.
func WithExpirationDays(days int) StoreOption {
	return func(s *Store) {
		if days > 0 {
			s.days = days
		}
	}
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.l = l }
}

func NewStore(adapter *storage.Adapter, opts ...StoreOption) *Store {
	s := &Store{adapter: adapter, days: DefaultExpirationDays, now: time.Now, l: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Key is the storage key of the record for cfg.
func Key(cfg storage.Config) string { return cfg.Name + Suffix }

// Store persists value. Empty values are ignored; the opt-out value clears
// any stored record instead of being written.
func (s *Store) Store(ctx context.Context, cfg storage.Config, value string) {
	if value == "" {
		return
	}
	if value == OptOut {
		s.Clear(ctx, cfg)
		return
	}
	expiresAt := s.now().Add(time.Duration(s.expirationDays(cfg)) * 24 * time.Hour)
	if err := s.adapter.Write(ctx, cfg.Type, Key(cfg), value, expiresAt); err != nil {
		s.l.Error("failed to store shared id", "key", Key(cfg), "type", cfg.Type, "error", err)
	}
}

// Load returns the stored value; expired, missing and unreadable records are absent.
func (s *Store) Load(ctx context.Context, cfg storage.Config) (string, bool) {
	v, err := s.adapter.Read(ctx, cfg.Type, Key(cfg))
	switch {
	case err == nil:
		return v, v != ""
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrExpired):
		return "", false
	}
	s.l.Error("failed to load shared id", "key", Key(cfg), "type", cfg.Type, "error", err)
	return "", false
}

// Clear removes the record and its expiry companion.
func (s *Store) Clear(ctx context.Context, cfg storage.Config) {
	if err := s.adapter.Delete(ctx, cfg.Type, Key(cfg)); err != nil {
		s.l.Error("failed to clear shared id", "key", Key(cfg), "type", cfg.Type, "error", err)
	}
}

// Refresh re-stores the current value so its expiry restarts from now.
func (s *Store) Refresh(ctx context.Context, cfg storage.Config) {
	if v, ok := s.Load(ctx, cfg); ok {
		s.Store(ctx, cfg, v)
	}
}

func (s *Store) expirationDays(cfg storage.Config) int {
	days := s.days
	if cfg.ExpirationDays > 0 {
		days = cfg.ExpirationDays
	}
	return min(days, MaxExpirationDays)
}
