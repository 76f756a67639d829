package session

import (
	"context"
	"log/slog"
	"time"

	dbpkg "github.com/omnibridge/omnibridge/internal/db"
)

// EnsureParams identifies the session a message belongs to and carries the
// platform ids observed on the current event. Blank platform ids leave the
// stored values untouched.
type EnsureParams struct {
	ConversationID     string
	ParticipantID      string
	VendorID           string
	DeskConversationID string
	GatewayChatID      string
}

// Manager guarantees at most one open session per conversation and keeps the
// routing cache aligned with whatever it decides.
type Manager struct {
	store Store
	cache *Cache
	log   *slog.Logger
	now   func() time.Time
}

// NewManager builds a session manager.
func NewManager(store Store, cache *Cache, log *slog.Logger) *Manager {
	return &Manager{
		store: store,
		cache: cache,
		log:   log.With(slog.String("service", "session")),
		now:   time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Ensure returns the open session for the conversation, creating or handing
// it over as needed:
//   - no open session: create one.
//   - open session on the same vendor: refresh platform ids in place.
//   - open session on another vendor: close it and create a fresh one.
//
// A concurrent create that loses the race on the open-session unique index
// is downgraded to an update of the session that won.
func (m *Manager) Ensure(ctx context.Context, params EnsureParams) (Session, error) {
	current, err := m.store.GetOpen(ctx, params.ConversationID)
	switch {
	case err == ErrNoOpenSession:
		return m.create(ctx, params)
	case err != nil:
		return Session{}, err
	}

	if current.VendorID == params.VendorID {
		updated, err := m.store.UpdatePlatformIDs(ctx, current.ID, params.DeskConversationID, params.GatewayChatID)
		if err != nil {
			return Session{}, err
		}
		m.refreshCache(ctx, params, updated)
		return updated, nil
	}

	m.log.Info("vendor handoff, closing session",
		slog.String("conversation_id", params.ConversationID),
		slog.String("from_vendor", current.VendorID),
		slog.String("to_vendor", params.VendorID))
	if err := m.store.Close(ctx, current.ID, m.now()); err != nil && err != ErrNoOpenSession {
		return Session{}, err
	}
	m.cache.Invalidate(ctx, current.VendorID, params.ParticipantID)
	return m.create(ctx, params)
}

func (m *Manager) create(ctx context.Context, params EnsureParams) (Session, error) {
	created, err := m.store.Create(ctx, CreateParams{
		ConversationID:     params.ConversationID,
		VendorID:           params.VendorID,
		DeskConversationID: params.DeskConversationID,
		GatewayChatID:      params.GatewayChatID,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err) {
			// Someone else opened the session first. Adopt theirs.
			winner, getErr := m.store.GetOpen(ctx, params.ConversationID)
			if getErr != nil {
				return Session{}, getErr
			}
			updated, updErr := m.store.UpdatePlatformIDs(ctx, winner.ID, params.DeskConversationID, params.GatewayChatID)
			if updErr != nil {
				return Session{}, updErr
			}
			m.refreshCache(ctx, params, updated)
			return updated, nil
		}
		return Session{}, err
	}
	m.refreshCache(ctx, params, created)
	return created, nil
}

func (m *Manager) refreshCache(ctx context.Context, params EnsureParams, sess Session) {
	if params.ParticipantID == "" || sess.DeskConversationID == "" {
		return
	}
	m.cache.Put(ctx, sess.VendorID, params.ParticipantID, CachedMapping{
		ConversationID:     sess.ConversationID,
		DeskConversationID: sess.DeskConversationID,
	})
}
