// Copyright 2025 Covenant Protocol
//
// Covenant Repository - CRUD operations for covenant documents
// The full document is stored as JSONB; identity fields are broken out
// for indexed lookups.

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
)

// CovenantRepository handles covenant document persistence
type CovenantRepository struct {
	client *Client
}

// NewCovenantRepository creates a new covenant repository
func NewCovenantRepository(client *Client) *CovenantRepository {
	return &CovenantRepository{client: client}
}

// Save inserts or replaces a covenant document
func (r *CovenantRepository) Save(ctx context.Context, doc *covenant.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("document with non-empty id is required")
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize covenant: %w", err)
	}

	createdAt, err := crypto.ParseTimestamp(doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("invalid createdAt: %w", err)
	}
	var expiresAt *time.Time
	if doc.ExpiresAt != "" {
		t, perr := crypto.ParseTimestamp(doc.ExpiresAt)
		if perr != nil {
			return fmt.Errorf("invalid expiresAt: %w", perr)
		}
		expiresAt = &t
	}
	var parentID *string
	if doc.Chain != nil {
		parentID = &doc.Chain.ParentID
	}

	query := `
		INSERT INTO covenants (
			covenant_id, version, issuer_id, beneficiary_id, parent_id,
			document, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (covenant_id) DO UPDATE SET
			document = EXCLUDED.document,
			expires_at = EXCLUDED.expires_at`

	_, err = r.client.ExecContext(ctx, query,
		doc.ID, doc.Version, doc.Issuer.ID, doc.Beneficiary.ID, parentID,
		body, createdAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save covenant: %w", err)
	}
	return nil
}

// Get retrieves a covenant by id. Returns ErrCovenantNotFound when absent.
func (r *CovenantRepository) Get(ctx context.Context, id string) (*covenant.Document, error) {
	var body []byte
	err := r.client.QueryRowContext(ctx,
		`SELECT document FROM covenants WHERE covenant_id = $1`, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrCovenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load covenant: %w", err)
	}
	return covenant.Unmarshal(body)
}

// Delete removes a covenant. Returns true if a row was deleted.
func (r *CovenantRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.client.ExecContext(ctx,
		`DELETE FROM covenants WHERE covenant_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete covenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByIssuer returns all covenants issued by the given party
func (r *CovenantRepository) ListByIssuer(ctx context.Context, issuerID string) ([]*covenant.Document, error) {
	return r.list(ctx,
		`SELECT document FROM covenants WHERE issuer_id = $1 ORDER BY created_at`, issuerID)
}

// ListByBeneficiary returns all covenants granted to the given party
func (r *CovenantRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]*covenant.Document, error) {
	return r.list(ctx,
		`SELECT document FROM covenants WHERE beneficiary_id = $1 ORDER BY created_at`, beneficiaryID)
}

// ListChildren returns the direct children of a covenant in the
// delegation graph
func (r *CovenantRepository) ListChildren(ctx context.Context, parentID string) ([]*covenant.Document, error) {
	return r.list(ctx,
		`SELECT document FROM covenants WHERE parent_id = $1 ORDER BY created_at`, parentID)
}

// Count returns the number of stored covenants
func (r *CovenantRepository) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := r.client.QueryRowContext(ctx, `SELECT count(*) FROM covenants`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count covenants: %w", err)
	}
	return n, nil
}

func (r *CovenantRepository) list(ctx context.Context, query string, args ...interface{}) ([]*covenant.Document, error) {
	rows, err := r.client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list covenants: %w", err)
	}
	defer rows.Close()

	var out []*covenant.Document
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		doc, derr := covenant.Unmarshal(body)
		if derr != nil {
			return nil, fmt.Errorf("stored covenant does not parse: %w", derr)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
