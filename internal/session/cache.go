package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omnibridge/omnibridge/internal/cache"
)

// DefaultCacheTTL bounds how long a routing entry survives without a refresh.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CachedMapping is the routing shortcut stored per vendor and participant.
type CachedMapping struct {
	ConversationID     string `json:"conversation_id"`
	DeskConversationID string `json:"desk_conversation_id"`
}

// Cache keeps vendor+participant routing entries in a shared cache store.
// Entries are a shortcut only, the database remains the source of truth.
type Cache struct {
	store cache.Store
	ttl   time.Duration
}

// NewCache wraps a cache store. A non-positive ttl falls back to the default.
func NewCache(store cache.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl}
}

func cacheKey(vendorID, participantID string) string {
	return fmt.Sprintf("session:%s:%s", vendorID, participantID)
}

// Get returns the cached mapping if present and structurally valid.
// Corrupt or incomplete entries are deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, vendorID, participantID string) (CachedMapping, bool) {
	key := cacheKey(vendorID, participantID)
	raw, ok := c.store.Get(ctx, key)
	if !ok {
		return CachedMapping{}, false
	}
	var mapping CachedMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil || mapping.ConversationID == "" || mapping.DeskConversationID == "" {
		c.store.Delete(ctx, key)
		return CachedMapping{}, false
	}
	return mapping, true
}

// Put stores the mapping, overwriting whatever was there.
func (c *Cache) Put(ctx context.Context, vendorID, participantID string, mapping CachedMapping) {
	raw, err := json.Marshal(mapping)
	if err != nil {
		return
	}
	c.store.Set(ctx, cacheKey(vendorID, participantID), string(raw), c.ttl)
}

// Invalidate drops the mapping for a vendor and participant.
func (c *Cache) Invalidate(ctx context.Context, vendorID, participantID string) {
	c.store.Delete(ctx, cacheKey(vendorID, participantID))
}
