package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

type ValkeyKV struct {
	client valkey.Client
	prefix string
}

var _ KV = (*ValkeyKV)(nil)

// NewValkey returns a KV over client. prefix namespaces every key.
func NewValkey(client valkey.Client, prefix string) *ValkeyKV {
	return &ValkeyKV{client: client, prefix: prefix}
}

func (s *ValkeyKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(s.prefix+key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("valkey: error getting %q: %w", key, err)
	}
	return v, nil
}

func (s *ValkeyKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Do(ctx, s.setCmd(key, value, ttl)).Error(); err != nil {
		return fmt.Errorf("valkey: error setting %q: %w", key, err)
	}
	return nil
}

// SetMany wraps the writes in MULTI/EXEC.
func (s *ValkeyKV) SetMany(ctx context.Context, ttl time.Duration, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	cmds := make(valkey.Commands, 0, len(entries)+2)
	cmds = append(cmds, s.client.B().Multi().Build())
	for _, e := range entries {
		cmds = append(cmds, s.setCmd(e.Key, e.Value, ttl))
	}
	cmds = append(cmds, s.client.B().Exec().Build())

	for _, result := range s.client.DoMulti(ctx, cmds...) {
		if err := result.Error(); err != nil {
			return fmt.Errorf("valkey: error setting %d entries: %w", len(entries), err)
		}
	}
	return nil
}

func (s *ValkeyKV) setCmd(key, value string, ttl time.Duration) valkey.Completed {
	if ttl > 0 {
		return s.client.B().Set().Key(s.prefix + key).Value(value).Ex(max(ttl, time.Second)).Build()
	}
	return s.client.B().Set().Key(s.prefix + key).Value(value).Build()
}

func (s *ValkeyKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(prefixed...).Build()).Error(); err != nil {
		return fmt.Errorf("valkey: error deleting %v: %w", keys, err)
	}
	return nil
}

func (s *ValkeyKV) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}
