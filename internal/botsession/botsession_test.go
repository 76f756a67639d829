package botsession

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/omnibridge/omnibridge/internal/cache"
	"github.com/omnibridge/omnibridge/internal/registry"
)

type fakeLookup struct {
	known map[string]registry.Customer
}

func (f *fakeLookup) ByTaxID(_ context.Context, taxID string) (registry.Customer, error) {
	c, ok := f.known[registry.NormalizeTaxID(taxID)]
	if !ok {
		return registry.Customer{}, nil
	}
	return c, nil
}

func newTestService(store *cache.MemoryStore) *Service {
	lookup := &fakeLookup{known: map[string]registry.Customer{
		"12345678000190": {Found: true, Name: "ACME", City: "Campinas", Region: "SP"},
	}}
	return NewService(store, lookup, time.Hour, slog.Default())
}

func TestCreateLeadWhenTaxIDUnknown(t *testing.T) {
	svc := newTestService(cache.NewMemoryStore())
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateParams{ConversationID: "conv-1"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.EntityType != EntityLead {
		t.Fatalf("entity type = %q, want lead", sess.EntityType)
	}
	if sess.SessionID == "" {
		t.Fatal("session id must be assigned")
	}
}

func TestCreateClientWhenTaxIDKnown(t *testing.T) {
	svc := newTestService(cache.NewMemoryStore())
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateParams{
		ConversationID: "conv-1",
		InitialKnown:   Known{TaxID: "12.345.678/0001-90"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sess.EntityType != EntityClient {
		t.Fatalf("entity type = %q, want client", sess.EntityType)
	}
}

func TestCreateReturnsActiveSession(t *testing.T) {
	svc := newTestService(cache.NewMemoryStore())
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateParams{ConversationID: "conv-1"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Create(ctx, CreateParams{ConversationID: "conv-1"})
	if err != nil {
		t.Fatal(err)
	}
	if second.SessionID != first.SessionID {
		t.Fatal("second create must return the active session")
	}
}

func TestCompleteRemovesSession(t *testing.T) {
	svc := newTestService(cache.NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{ConversationID: "conv-1"}); err != nil {
		t.Fatal(err)
	}
	svc.Complete(ctx, "conv-1")
	if _, ok := svc.GetActive(ctx, "conv-1"); ok {
		t.Fatal("completed session must be gone")
	}
}

func TestGetActiveDropsCorruptEntry(t *testing.T) {
	store := cache.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	store.Set(ctx, "bot_session:active:conv-1", "not json", time.Hour)
	if _, ok := svc.GetActive(ctx, "conv-1"); ok {
		t.Fatal("corrupt entry reported as active")
	}
	if _, ok := store.Get(ctx, "bot_session:active:conv-1"); ok {
		t.Fatal("corrupt entry not deleted")
	}
}

func TestSessionExpires(t *testing.T) {
	store := cache.NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{ConversationID: "conv-1"}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)
	if _, ok := svc.GetActive(ctx, "conv-1"); ok {
		t.Fatal("session must expire with its cache entry")
	}
}
