package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/omnibridge/omnibridge/internal/db"
)

const sessionColumns = `id, conversation_id, vendor_id, desk_conversation_id, gateway_chat_id, start_at, end_at, created_at, updated_at`

// PGStore is the PostgreSQL-backed session Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a session store over the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetOpen returns the open session for a conversation.
func (s *PGStore) GetOpen(ctx context.Context, conversationID string) (Session, error) {
	pgID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return Session{}, ErrNoOpenSession
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM conversation_sessions
		 WHERE conversation_id = $1 AND end_at IS NULL`, pgID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			return Session{}, ErrNoOpenSession
		}
		return Session{}, err
	}
	return sess, nil
}

// Create opens a new session. The partial unique index on open sessions
// turns a concurrent double-create into a unique violation the manager
// downgrades to an update.
func (s *PGStore) Create(ctx context.Context, params CreateParams) (Session, error) {
	pgConvID, err := dbpkg.ParseUUID(params.ConversationID)
	if err != nil {
		return Session{}, fmt.Errorf("invalid conversation id: %w", err)
	}
	pgVendorID, err := dbpkg.ParseUUID(params.VendorID)
	if err != nil {
		return Session{}, fmt.Errorf("invalid vendor id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversation_sessions (conversation_id, vendor_id, desk_conversation_id, gateway_chat_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+sessionColumns,
		pgConvID, pgVendorID, params.DeskConversationID, params.GatewayChatID)
	return scanSession(row)
}

// UpdatePlatformIDs overwrites the native platform ids of a session,
// keeping stored values where the input is blank.
func (s *PGStore) UpdatePlatformIDs(ctx context.Context, id, deskConversationID, gatewayChatID string) (Session, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Session{}, ErrNoOpenSession
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE conversation_sessions
		 SET desk_conversation_id = COALESCE(NULLIF($2, ''), desk_conversation_id),
		     gateway_chat_id = COALESCE(NULLIF($3, ''), gateway_chat_id),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+sessionColumns,
		pgID, deskConversationID, gatewayChatID)
	return scanSession(row)
}

// Close stamps the end timestamp.
func (s *PGStore) Close(ctx context.Context, id string, endAt time.Time) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return ErrNoOpenSession
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_sessions
		 SET end_at = $2, updated_at = now()
		 WHERE id = $1 AND end_at IS NULL`,
		pgID, dbpkg.ToPgTime(endAt))
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoOpenSession
	}
	return nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		id, convID, vendorID pgtype.UUID
		startAt, endAt       pgtype.Timestamptz
		createdAt, updatedAt pgtype.Timestamptz
		sess                 Session
	)
	err := row.Scan(&id, &convID, &vendorID, &sess.DeskConversationID, &sess.GatewayChatID,
		&startAt, &endAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNoOpenSession
		}
		return Session{}, err
	}
	sess.ID = id.String()
	sess.ConversationID = convID.String()
	sess.VendorID = vendorID.String()
	sess.StartAt = dbpkg.TimeFromPg(startAt)
	sess.EndAt = dbpkg.TimePtrFromPg(endAt)
	sess.CreatedAt = dbpkg.TimeFromPg(createdAt)
	sess.UpdatedAt = dbpkg.TimeFromPg(updatedAt)
	return sess, nil
}
