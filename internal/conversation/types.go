// Package conversation manages the durable thread identity for one external
// participant. A conversation is reassignable across vendors and expires
// logically after an inactivity window; expired threads are superseded by a
// fresh row, never resurrected.
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound means no conversation exists for the lookup key.
var ErrNotFound = errors.New("conversation not found")

// Conversation statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// DefaultTTL is the inactivity window after which a conversation is treated
// as expired.
const DefaultTTL = 30 * 24 * time.Hour

// Conversation is the durable thread between one participant and the vendor
// currently owning its traffic.
type Conversation struct {
	ID              string     `json:"id"`
	ParticipantID   string     `json:"participant_id"`
	CurrentVendorID string     `json:"current_vendor_id"`
	Status          string     `json:"status"`
	LastActiveAt    *time.Time `json:"last_active_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Store is the durable conversation surface.
type Store interface {
	// GetMostRecent returns the most recently active conversation for the
	// participant, regardless of vendor (NULL last_active_at ordered last).
	GetMostRecent(ctx context.Context, participantID string) (Conversation, error)
	// Get returns a conversation by id.
	Get(ctx context.Context, id string) (Conversation, error)
	// Create inserts a fresh open conversation stamped active at the given time.
	Create(ctx context.Context, participantID, vendorID string, activeAt time.Time) (Conversation, error)
	// Touch reassigns the owning vendor and stamps last_active_at.
	Touch(ctx context.Context, id, vendorID string, activeAt time.Time) (Conversation, error)
	// Close marks a conversation closed.
	Close(ctx context.Context, id string) error
}
