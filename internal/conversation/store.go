package conversation

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

const conversationColumns = `id, participant_id, current_vendor_id, status, last_active_at, created_at, updated_at`

// PGStore is the PostgreSQL-backed conversation Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a conversation store over the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetMostRecent returns the most recently active conversation for the participant.
func (s *PGStore) GetMostRecent(ctx context.Context, participantID string) (Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+`
		 FROM conversations
		 WHERE participant_id = $1
		 ORDER BY last_active_at DESC NULLS LAST
		 LIMIT 1`, participantID)
	return scanConversation(row)
}

// Get returns a conversation by id.
func (s *PGStore) Get(ctx context.Context, id string) (Conversation, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Conversation{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, pgID)
	return scanConversation(row)
}

// Create inserts a fresh open conversation.
func (s *PGStore) Create(ctx context.Context, participantID, vendorID string, activeAt time.Time) (Conversation, error) {
	pgVendorID, err := dbpkg.ParseUUID(vendorID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid vendor id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (participant_id, current_vendor_id, status, last_active_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+conversationColumns,
		participantID, pgVendorID, StatusOpen, dbpkg.ToPgTime(activeAt))
	conv, err := scanConversation(row)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Touch reassigns the owning vendor and stamps last_active_at.
func (s *PGStore) Touch(ctx context.Context, id, vendorID string, activeAt time.Time) (Conversation, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Conversation{}, ErrNotFound
	}
	pgVendorID, err := dbpkg.ParseUUID(vendorID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid vendor id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE conversations
		 SET current_vendor_id = $2, last_active_at = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+conversationColumns,
		pgID, pgVendorID, dbpkg.ToPgTime(activeAt))
	return scanConversation(row)
}

// Close marks a conversation closed.
func (s *PGStore) Close(ctx context.Context, id string) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`,
		pgID, StatusClosed)
	if err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		id                   pgtype.UUID
		vendorID             pgtype.UUID
		lastActiveAt         pgtype.Timestamptz
		createdAt, updatedAt pgtype.Timestamptz
		conv                 Conversation
	)
	err := row.Scan(&id, &conv.ParticipantID, &vendorID, &conv.Status,
		&lastActiveAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	conv.ID = id.String()
	if vendorID.Valid {
		conv.CurrentVendorID = vendorID.String()
	}
	conv.LastActiveAt = dbpkg.TimePtrFromPg(lastActiveAt)
	conv.CreatedAt = dbpkg.TimeFromPg(createdAt)
	conv.UpdatedAt = dbpkg.TimeFromPg(updatedAt)
	return conv, nil
}
