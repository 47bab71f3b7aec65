package session

import (
	"context"

	id "kyc-service/pkg/domain"
)

// Stores are interface-driven so services stay testable and the in-memory and
// postgres implementations remain swappable. All implementations return
// sentinel errors (pkg/platform/sentinel) for infrastructure facts.

// Store persists sessions. Execute performs an atomic validate-then-mutate:
// the implementation holds its lock (mutex or SELECT FOR UPDATE) across both
// callbacks, which is what serializes the completeness gate. Two concurrent
// uploads cannot both observe the incomplete-to-complete transition.
type Store interface {
	Create(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error)
	// Execute loads the session, runs validate, and if it returns nil applies
	// mutate and persists the outcome, all under the session's lock. Returns
	// the session as persisted.
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*Session) error, mutate func(*Session)) (*Session, error)
}

// EvidenceStore persists evidence records (metadata only; bytes live in the
// blob store). Records are append-only.
type EvidenceStore interface {
	Append(ctx context.Context, e *Evidence) error
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]*Evidence, error)
	// TypesBySession returns the set of media types with at least one record.
	TypesBySession(ctx context.Context, sessionID id.SessionID) (map[MediaType]bool, error)
}

// ResultStore persists results keyed by session. Upsert creates the row when
// absent and overwrites score fields when present, which is what makes
// repeated worker callbacks idempotent at the data level.
type ResultStore interface {
	Upsert(ctx context.Context, r *Result) (*Result, error)
	FindBySession(ctx context.Context, sessionID id.SessionID) (*Result, error)
}

// DispatchGuard is a shared at-most-once barrier in front of the queue
// publish. The store-level conditional transition already guarantees a single
// gate firing per process tree; the guard extends that guarantee across
// replicas that share a database but not its locks, and Release compensates a
// failed publish so the session can be retried.
type DispatchGuard interface {
	// Acquire returns true exactly once per session until released.
	Acquire(ctx context.Context, sessionID id.SessionID) (bool, error)
	Release(ctx context.Context, sessionID id.SessionID) error
}
