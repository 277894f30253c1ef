package cache

import (
	"time"
)

// Entry is the envelope stored in both tiers.
//
// ExpiresAt is fixed when the entry is created. Reads update the access
// bookkeeping only; they never extend the expiry (the cache is not sliding).
type Entry struct {
	// Payload is the serialized value.
	Payload []byte `json:"payload"`

	// CreatedAt is when the value was written.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is CreatedAt plus the policy TTL.
	ExpiresAt time.Time `json:"expires_at"`

	// AccessCount is the number of reads served from this entry.
	AccessCount int64 `json:"access_count"`

	// LastAccessedAt is the time of the most recent read.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

func newEntry(payload []byte, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Payload:        payload,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
}

// IsExpiredAt returns true if the entry is expired at the given time.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTLAt returns the time left until expiration.
// Returns 0 if already expired.
func (e *Entry) TTLAt(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// touch records a read.
func (e *Entry) touch(now time.Time) {
	e.AccessCount++
	e.LastAccessedAt = now
}

// size approximates the memory footprint used for tier accounting.
func (e *Entry) size() int64 {
	return int64(len(e.Payload)) + entryOverhead
}

// entryOverhead covers the timestamps and counters held next to the payload.
const entryOverhead = 64
