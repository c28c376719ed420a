package storage

import (
	"context"
	"fmt"

	"clawmobile/internal/domain"
	"clawmobile/internal/security"
)

// SecureStore encrypts values at rest before handing them to an inner store.
// Only the listed keys are encrypted; an empty list encrypts every key.
// Plaintext written before encryption was enabled still reads back.
type SecureStore struct {
	inner  domain.KVStore
	sealer *security.Sealer
	keys   map[string]bool
}

// NewSecureStore wraps inner. passphrase must not be empty.
func NewSecureStore(inner domain.KVStore, passphrase string, keys ...string) (*SecureStore, error) {
	sealer, err := security.NewSealer(passphrase)
	if err != nil {
		return nil, fmt.Errorf("secure store: %w: %w", domain.ErrEncryption, err)
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return &SecureStore{inner: inner, sealer: sealer, keys: set}, nil
}

func (s *SecureStore) sealed(key string) bool {
	return len(s.keys) == 0 || s.keys[key]
}

func (s *SecureStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok || !s.sealed(key) {
		return v, ok, err
	}
	plain, err := s.sealer.Open(v)
	if err != nil {
		return "", false, domain.NewDomainError("SecureStore.Get", domain.ErrDecryption, err.Error())
	}
	return plain, true, nil
}

func (s *SecureStore) Set(ctx context.Context, key, value string) error {
	if !s.sealed(key) {
		return s.inner.Set(ctx, key, value)
	}
	enc, err := s.sealer.Seal(value)
	if err != nil {
		return domain.NewDomainError("SecureStore.Set", domain.ErrEncryption, err.Error())
	}
	return s.inner.Set(ctx, key, enc)
}

func (s *SecureStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

// Close clears key material held in memory.
func (s *SecureStore) Close() error {
	s.sealer.Zeroize()
	return nil
}
