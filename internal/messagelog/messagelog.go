// Package messagelog keeps an append-only audit trail of forwarded messages.
package messagelog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/omnibridge/omnibridge/internal/db"
)

// Directions of a logged message relative to the bridge. The literals are
// part of the stored record format.
const (
	DirectionInbound  = "incoming"
	DirectionOutbound = "outgoing"
)

// Sources name the platform the message originated from.
const (
	SourceGateway = "gateway"
	SourceDesk    = "desk"
)

// Entry is one audit record. Content holds the text or caption only.
type Entry struct {
	ConversationID string
	SessionID      string
	VendorID       string
	Direction      string
	Source         string
	MessageType    string
	Content        string
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// PGStore writes entries to PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates the store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Append inserts one audit record.
func (s *PGStore) Append(ctx context.Context, entry Entry) error {
	pgConvID, err := dbpkg.ParseUUID(entry.ConversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation id: %w", err)
	}
	pgSessionID, _ := dbpkg.ParseUUID(entry.SessionID)
	pgVendorID, _ := dbpkg.ParseUUID(entry.VendorID)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO messages_log (conversation_id, session_id, vendor_id, direction, source, message_type, content)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pgConvID, pgSessionID, pgVendorID, entry.Direction, entry.Source, entry.MessageType, dbpkg.ToPgText(entry.Content))
	if err != nil {
		return fmt.Errorf("append message log: %w", err)
	}
	return nil
}

// Recorder logs audit failures instead of failing the pipeline. Losing a
// log row must never lose a message.
type Recorder struct {
	store Store
	log   *slog.Logger
}

// NewRecorder wraps a store with best-effort semantics.
func NewRecorder(store Store, log *slog.Logger) *Recorder {
	return &Recorder{
		store: store,
		log:   log.With(slog.String("service", "messagelog")),
	}
}

// Record appends an entry, logging and swallowing any error.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	start := time.Now()
	if err := r.store.Append(ctx, entry); err != nil {
		r.log.Error("failed to append audit entry",
			slog.String("conversation_id", entry.ConversationID),
			slog.String("direction", entry.Direction),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
	}
}
