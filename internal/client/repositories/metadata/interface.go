package metadata

import (
	"context"
)

// Keys used by the client.
const (
	KeyPassphrase = "passphrase"
	KeyUsername   = "username"
)

// Repository is a small key/value cache whose entries expire.
// Get returns (nil, nil) for absent or expired keys.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
