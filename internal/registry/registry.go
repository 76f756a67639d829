// Package registry answers customer lookups against a local SQLite
// database seeded by the provisioning side.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/omnibridge/omnibridge/internal/config"
)

// Customer is one lookup result. Found is false when the tax id is not in
// the registry, the other fields are empty in that case.
type Customer struct {
	Found  bool   `json:"found"`
	Name   string `json:"customer_name,omitempty"`
	City   string `json:"customer_city,omitempty"`
	Region string `json:"customer_state,omitempty"`
}

// Lookup resolves a tax id to a customer record.
type Lookup interface {
	ByTaxID(ctx context.Context, taxID string) (Customer, error)
}

// SQLiteLookup reads the customers table of a local SQLite file.
type SQLiteLookup struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens the registry database. The file must exist, the registry is
// read-only from the bridge's point of view.
func Open(cfg config.RegistryConfig, log *slog.Logger) (*SQLiteLookup, error) {
	db, err := sql.Open("sqlite", cfg.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open customer registry: %w", err)
	}
	return &SQLiteLookup{
		db:  db,
		log: log.With(slog.String("service", "registry")),
	}, nil
}

// Close releases the database handle.
func (l *SQLiteLookup) Close() error {
	return l.db.Close()
}

// NormalizeTaxID strips everything but digits.
func NormalizeTaxID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ByTaxID looks up a customer by tax id. Non-digits in the input and in
// stored ids are ignored for the comparison.
func (l *SQLiteLookup) ByTaxID(ctx context.Context, taxID string) (Customer, error) {
	normalized := NormalizeTaxID(taxID)
	if normalized == "" {
		return Customer{}, nil
	}
	row := l.db.QueryRowContext(ctx,
		`SELECT name, city, region FROM customers WHERE tax_id = ? LIMIT 1`, normalized)
	var c Customer
	if err := row.Scan(&c.Name, &c.City, &c.Region); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, nil
		}
		return Customer{}, fmt.Errorf("customer lookup: %w", err)
	}
	c.Found = true
	return c, nil
}
