package metadata

import (
	"context"
	"time"
)

// Repository is a small key/value store for pass-level status that must
// survive restarts, such as the last sync pass time and error per server.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns every pair whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	// Clear removes every pair whose key starts with prefix.
	Clear(ctx context.Context, prefix string) error

	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
