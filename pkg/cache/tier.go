package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested key is not stored in the tier.
	ErrNotFound = errors.New("cache entry not found")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Tier is the persistent (second) cache tier.
//
// Implementations return ErrNotFound from Load for missing keys and treat
// Delete of a missing key as success.
type Tier interface {
	// Name identifies the tier in logs and metrics (e.g. "disk", "redis").
	Name() string

	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// RemoveExpired deletes every entry with ExpiresAt before now, plus
	// entries that can no longer be decoded. It returns the number removed.
	RemoveExpired(ctx context.Context, now time.Time) (int, error)

	// Usage reports the number of stored entries and their size in bytes.
	Usage(ctx context.Context) (Usage, error)
}

// Trimmer is implemented by tiers that can shrink themselves to a byte budget
// by dropping the least recently written entries.
type Trimmer interface {
	Trim(ctx context.Context, maxBytes int64) (int, error)
}

// Usage is a tier size snapshot.
type Usage struct {
	Entries int
	Bytes   int64
}
