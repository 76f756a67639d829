// Package cache provides the volatile key-value store used for session
// routing shortcuts and intake state. Lookups are best-effort: every
// backend failure degrades to a miss and is logged, never escalated.
package cache

import (
	"context"
	"time"
)

// Store abstracts the volatile cache collaborator. Implementations must
// treat backend errors as misses/no-ops; callers never see them.
type Store interface {
	// Get returns the value for key, or ok=false on miss or failure.
	Get(ctx context.Context, key string) (value string, ok bool)
	// Set writes value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// Delete removes key. Missing keys are a no-op.
	Delete(ctx context.Context, key string)
}
