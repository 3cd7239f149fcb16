// Copyright 2025 Covenant Protocol
//
// Breach Attestation Repository - persistence for verified breach reports

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	"github.com/covenant-protocol/trust-kernel/pkg/trust"
)

// BreachRepository handles breach attestation persistence
type BreachRepository struct {
	client *Client
}

// NewBreachRepository creates a new breach repository
func NewBreachRepository(client *Client) *BreachRepository {
	return &BreachRepository{client: client}
}

// Save inserts a breach attestation. Saving the same attestation twice is
// a no-op.
func (r *BreachRepository) Save(ctx context.Context, att *trust.Attestation) error {
	if att == nil || att.ID == "" {
		return fmt.Errorf("attestation with non-empty id is required")
	}

	body, err := json.Marshal(att)
	if err != nil {
		return fmt.Errorf("failed to serialize attestation: %w", err)
	}
	reportedAt, err := crypto.ParseTimestamp(att.ReportedAt)
	if err != nil {
		return fmt.Errorf("invalid reportedAt: %w", err)
	}

	query := `
		INSERT INTO breach_attestations (
			attestation_id, covenant_id, violator_hash, severity,
			reporter_pubkey, attestation, reported_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (attestation_id) DO NOTHING`

	_, err = r.client.ExecContext(ctx, query,
		att.ID, att.CovenantID, att.ViolatorIdentityHash, string(att.Severity),
		att.ReporterPublicKey, body, reportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save attestation: %w", err)
	}
	return nil
}

// Get retrieves an attestation by id. Returns ErrAttestationNotFound when
// absent.
func (r *BreachRepository) Get(ctx context.Context, id string) (*trust.Attestation, error) {
	var body []byte
	err := r.client.QueryRowContext(ctx,
		`SELECT attestation FROM breach_attestations WHERE attestation_id = $1`, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrAttestationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attestation: %w", err)
	}

	var att trust.Attestation
	if err := json.Unmarshal(body, &att); err != nil {
		return nil, fmt.Errorf("stored attestation does not parse: %w", err)
	}
	return &att, nil
}

// ListByViolator returns all attestations against an identity, newest
// first
func (r *BreachRepository) ListByViolator(ctx context.Context, violatorHash string) ([]*trust.Attestation, error) {
	rows, err := r.client.QueryContext(ctx,
		`SELECT attestation FROM breach_attestations
		 WHERE violator_hash = $1 ORDER BY reported_at DESC`, violatorHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list attestations: %w", err)
	}
	defer rows.Close()

	var out []*trust.Attestation
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var att trust.Attestation
		if err := json.Unmarshal(body, &att); err != nil {
			return nil, fmt.Errorf("stored attestation does not parse: %w", err)
		}
		out = append(out, &att)
	}
	return out, rows.Err()
}
