// Package database owns the pgx connection pool and the self-contained schema
// bootstrap used by the server and worker binaries.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the pipeline tables if needed. Keeping the migration in
// code lets docker-compose bootstrap a working stack with no extra tooling.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS kyc_sessions (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	user_ref TEXT,
	status TEXT NOT NULL,
	challenge_script JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	attempts INT NOT NULL DEFAULT 0,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kyc_sessions_org ON kyc_sessions(organization_id);

CREATE TABLE IF NOT EXISTS kyc_evidence (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES kyc_sessions(id),
	media_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	checksum TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	status TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kyc_evidence_session ON kyc_evidence(session_id);

CREATE TABLE IF NOT EXISTS kyc_results (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL UNIQUE REFERENCES kyc_sessions(id),
	liveness_score DOUBLE PRECISION,
	face_match_score DOUBLE PRECISION,
	reason_codes TEXT[],
	manual_review BOOLEAN NOT NULL DEFAULT FALSE,
	finalized_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS webhook_endpoints (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	url TEXT NOT NULL,
	secret TEXT NOT NULL,
	event_types TEXT[] NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_webhook_endpoints_org ON webhook_endpoints(organization_id) WHERE active;`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
