package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Resolver finds or creates the current conversation for a participant.
type Resolver struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewResolver creates a conversation resolver. ttl <= 0 uses DefaultTTL.
func NewResolver(log *slog.Logger, store Store, ttl time.Duration) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: log.With(slog.String("service", "conversation")),
	}
}

// SetClock overrides the resolver's time source. Test hook.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Ensure returns the current conversation for the participant, creating or
// superseding as needed:
//
//   - no conversation yet: create one owned by vendorID
//   - existing but never stamped active: treat as active, stamp now
//   - existing but idle past the TTL: supersede with a fresh conversation
//     (the stale row keeps its status; a newer last_active_at makes the new
//     row the most recent)
//   - existing and fresh: reassign the vendor if changed, stamp now
//
// The null-stamp check runs before the TTL comparison so a never-touched
// conversation is not misclassified as expired.
func (r *Resolver) Ensure(ctx context.Context, participantID, vendorID string) (Conversation, error) {
	now := r.now()

	conv, err := r.store.GetMostRecent(ctx, participantID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Conversation{}, fmt.Errorf("lookup conversation: %w", err)
		}
		created, err := r.store.Create(ctx, participantID, vendorID, now)
		if err != nil {
			return Conversation{}, err
		}
		r.logger.Info("conversation created",
			slog.String("conversation_id", created.ID),
			slog.String("participant_id", participantID),
			slog.String("vendor_id", vendorID))
		return created, nil
	}

	if conv.LastActiveAt == nil {
		return r.store.Touch(ctx, conv.ID, vendorID, now)
	}

	if now.Sub(*conv.LastActiveAt) > r.ttl {
		created, err := r.store.Create(ctx, participantID, vendorID, now)
		if err != nil {
			return Conversation{}, err
		}
		r.logger.Info("conversation expired, superseded",
			slog.String("old_conversation_id", conv.ID),
			slog.String("conversation_id", created.ID),
			slog.String("participant_id", participantID))
		return created, nil
	}

	if conv.CurrentVendorID != vendorID {
		r.logger.Info("conversation vendor reassigned",
			slog.String("conversation_id", conv.ID),
			slog.String("from_vendor", conv.CurrentVendorID),
			slog.String("to_vendor", vendorID))
	}
	return r.store.Touch(ctx, conv.ID, vendorID, now)
}

// Get returns a conversation by id.
func (r *Resolver) Get(ctx context.Context, id string) (Conversation, error) {
	return r.store.Get(ctx, id)
}
