package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and blob backends return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: session is past its deadline
// - ErrConflict: concurrent update lost or unique constraint hit
// - ErrInvalidState: entity in wrong state for requested transition
// - ErrUnavailable: backing service (storage, queue) temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
