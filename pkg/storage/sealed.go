package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

var ErrSealedValue = errors.New("storage: cannot open sealed value")

// SealedKV encrypts values at rest with AES-GCM. Keys stay in the clear so
// paired entries remain addressable.
type SealedKV struct {
	next KV
	gcm  cipher.AEAD
}

var _ KV = (*SealedKV)(nil)

// NewSealed wraps next; key must be 16, 24 or 32 bytes.
func NewSealed(next KV, key []byte) (*SealedKV, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("storage: error creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("storage: error creating gcm: %w", err)
	}
	return &SealedKV{next: next, gcm: gcm}, nil
}

func (s *SealedKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.next.Get(ctx, key)
	if err != nil {
		return "", err
	}
	raw, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSealedValue, err)
	}
	size := s.gcm.NonceSize()
	if len(raw) < size {
		return "", ErrSealedValue
	}
	plain, err := s.gcm.Open(nil, raw[:size], raw[size:], []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSealedValue, err)
	}
	return string(plain), nil
}

func (s *SealedKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.next.Set(ctx, key, sealed, ttl)
}

func (s *SealedKV) SetMany(ctx context.Context, ttl time.Duration, entries ...Entry) error {
	sealed := make([]Entry, len(entries))
	for i, e := range entries {
		v, err := s.seal(e.Key, e.Value)
		if err != nil {
			return err
		}
		sealed[i] = Entry{Key: e.Key, Value: v}
	}
	return s.next.SetMany(ctx, ttl, sealed...)
}

func (s *SealedKV) seal(key, value string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("storage: error generating nonce: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(s.gcm.Seal(nonce, nonce, []byte(value), []byte(key))), nil
}

func (s *SealedKV) Del(ctx context.Context, keys ...string) error { return s.next.Del(ctx, keys...) }

func (s *SealedKV) Ping(ctx context.Context) error { return s.next.Ping(ctx) }
