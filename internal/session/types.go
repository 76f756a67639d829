// Package session manages the vendor-scoped session layered on a
// conversation. A session carries both platforms' native conversation
// identifiers; those pairings are only valid for the vendor that was active
// when they were captured, so a vendor handoff closes the session and opens
// a fresh one.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoOpenSession means the conversation has no session with a null end timestamp.
var ErrNoOpenSession = errors.New("no open session")

// Session is a vendor-scoped handle on a conversation.
type Session struct {
	ID                 string     `json:"id"`
	ConversationID     string     `json:"conversation_id"`
	VendorID           string     `json:"vendor_id"`
	DeskConversationID string     `json:"desk_conversation_id"`
	GatewayChatID      string     `json:"gateway_chat_id"`
	StartAt            time.Time  `json:"start_at"`
	EndAt              *time.Time `json:"end_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Open reports whether the session is still open.
func (s Session) Open() bool {
	return s.EndAt == nil
}

// CreateParams holds the fields for opening a session.
type CreateParams struct {
	ConversationID     string
	VendorID           string
	DeskConversationID string
	GatewayChatID      string
}

// Store is the durable session surface. Sessions are never deleted; the
// only terminal transition is stamping the end timestamp.
type Store interface {
	// GetOpen returns the open session for a conversation, or ErrNoOpenSession.
	GetOpen(ctx context.Context, conversationID string) (Session, error)
	// Create opens a new session.
	Create(ctx context.Context, params CreateParams) (Session, error)
	// UpdatePlatformIDs overwrites the native platform ids of an open
	// session. Empty inputs keep the stored value.
	UpdatePlatformIDs(ctx context.Context, id, deskConversationID, gatewayChatID string) (Session, error)
	// Close stamps the end timestamp.
	Close(ctx context.Context, id string, endAt time.Time) error
}
