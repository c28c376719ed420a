package domain

import "context"

// KVStore is the key-value persistence collaborator.
// Get reports ok=false for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// CredentialSource supplies the paired server URL and bearer token.
// Both values are opaque to the transport layer.
type CredentialSource interface {
	ServerURL(ctx context.Context) (string, error)
	Token(ctx context.Context) (string, error)
}
