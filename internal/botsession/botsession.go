// Package botsession keeps cache-only intake sessions: the multi-turn
// state a bot collects from a participant before handing off to an agent.
package botsession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omnibridge/omnibridge/internal/cache"
	"github.com/omnibridge/omnibridge/internal/registry"
)

// DefaultTTL bounds how long an abandoned intake survives.
const DefaultTTL = 2 * time.Hour

// Entity types an intake resolves to.
const (
	EntityLead   = "lead"
	EntityClient = "client"
)

// Known holds the facts collected so far.
type Known struct {
	TaxID   string `json:"cnpj,omitempty"`
	Region  string `json:"state,omitempty"`
	Segment string `json:"segment,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
}

// Attempts counts how many times each question was asked.
type Attempts struct {
	AskTaxID   int `json:"ask_cnpj"`
	AskRegion  int `json:"ask_state"`
	AskSegment int `json:"ask_segment"`
	AskVendor  int `json:"ask_vendor"`
}

// Session is one active intake, keyed by conversation id.
type Session struct {
	SessionID      string   `json:"session_id"`
	ConversationID string   `json:"conversation_id"`
	Completed      bool     `json:"completed"`
	EntityType     string   `json:"entity_type"`
	Known          Known    `json:"known"`
	Attempts       Attempts `json:"attempts"`
}

// CreateParams starts an intake for a conversation with whatever is
// already known.
type CreateParams struct {
	ConversationID string `json:"conversation_id"`
	InitialKnown   Known  `json:"initial_known"`
}

// Service manages intake sessions. State lives only in the cache, losing
// an entry restarts the intake from scratch.
type Service struct {
	cache  cache.Store
	lookup registry.Lookup
	ttl    time.Duration
	log    *slog.Logger
}

// NewService builds the intake service. A non-positive ttl falls back to
// the default.
func NewService(cacheStore cache.Store, lookup registry.Lookup, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		cache:  cacheStore,
		lookup: lookup,
		ttl:    ttl,
		log:    log.With(slog.String("service", "botsession")),
	}
}

func sessionKey(conversationID string) string {
	return fmt.Sprintf("bot_session:active:%s", conversationID)
}

// GetActive returns the active intake for a conversation, if any. Corrupt
// entries are deleted and reported as absent.
func (s *Service) GetActive(ctx context.Context, conversationID string) (Session, bool) {
	key := sessionKey(conversationID)
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return Session{}, false
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.SessionID == "" || sess.ConversationID == "" {
		s.log.Warn("dropping corrupt intake session entry",
			slog.String("conversation_id", conversationID))
		s.cache.Delete(ctx, key)
		return Session{}, false
	}
	return sess, true
}

// Create starts an intake for a conversation, or returns the one already
// active. The entity type is decided by the customer registry: a known tax
// id makes it a client, everything else starts as a lead.
func (s *Service) Create(ctx context.Context, params CreateParams) (Session, error) {
	if existing, ok := s.GetActive(ctx, params.ConversationID); ok {
		s.log.Info("intake session already active",
			slog.String("conversation_id", params.ConversationID),
			slog.String("session_id", existing.SessionID))
		return existing, nil
	}

	entityType := EntityLead
	if params.InitialKnown.TaxID != "" {
		customer, err := s.lookup.ByTaxID(ctx, params.InitialKnown.TaxID)
		if err != nil {
			s.log.Warn("customer lookup failed, assuming lead", slog.Any("error", err))
		} else if customer.Found {
			entityType = EntityClient
		}
	}

	sess := Session{
		SessionID:      uuid.NewString(),
		ConversationID: params.ConversationID,
		EntityType:     entityType,
		Known:          params.InitialKnown,
	}
	if err := s.save(ctx, sess); err != nil {
		return Session{}, err
	}
	s.log.Info("intake session created",
		slog.String("conversation_id", params.ConversationID),
		slog.String("session_id", sess.SessionID),
		slog.String("entity_type", entityType))
	return sess, nil
}

// Update overwrites the stored intake, refreshing its TTL.
func (s *Service) Update(ctx context.Context, sess Session) error {
	return s.save(ctx, sess)
}

// Complete marks the intake done and removes it from the cache.
func (s *Service) Complete(ctx context.Context, conversationID string) {
	s.cache.Delete(ctx, sessionKey(conversationID))
}

func (s *Service) save(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode intake session: %w", err)
	}
	s.cache.Set(ctx, sessionKey(sess.ConversationID), string(raw), s.ttl)
	return nil
}
