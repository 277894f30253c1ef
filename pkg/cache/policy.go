package cache

import (
	"fmt"
	"time"
)

// Policy bundles the TTL and tier size limits chosen at a call site.
type Policy struct {
	Name           string
	TTL            time.Duration
	MaxMemoryBytes int64
	MaxDiskBytes   int64
}

const mib = 1024 * 1024

// Named presets.
var (
	DefaultPolicy = Policy{
		Name:           "default",
		TTL:            time.Hour,
		MaxMemoryBytes: 50 * mib,
		MaxDiskBytes:   100 * mib,
	}

	ShortTermPolicy = Policy{
		Name:           "short_term",
		TTL:            5 * time.Minute,
		MaxMemoryBytes: 10 * mib,
		MaxDiskBytes:   20 * mib,
	}

	LongTermPolicy = Policy{
		Name:           "long_term",
		TTL:            24 * time.Hour,
		MaxMemoryBytes: 100 * mib,
		MaxDiskBytes:   500 * mib,
	}
)

// PolicyByName resolves a preset by its name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", DefaultPolicy.Name:
		return DefaultPolicy, nil
	case ShortTermPolicy.Name:
		return ShortTermPolicy, nil
	case LongTermPolicy.Name:
		return LongTermPolicy, nil
	default:
		return Policy{}, fmt.Errorf("unknown cache policy %q", name)
	}
}
