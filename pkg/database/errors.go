// Copyright 2025 Covenant Protocol
//
// Package database provides sentinel errors for repository operations.
// Explicit errors instead of nil, nil returns.

package database

import "errors"

// Sentinel errors for database operations
var (
	// ErrNotFound is returned when a requested entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrCovenantNotFound is returned when a covenant record is not found
	ErrCovenantNotFound = errors.New("covenant not found")

	// ErrAttestationNotFound is returned when a breach attestation record
	// is not found
	ErrAttestationNotFound = errors.New("breach attestation not found")
)
