package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "kyc-service/pkg/domain"
	"kyc-service/pkg/platform/sentinel"
)

// Postgres stores are pure I/O; all pipeline rules live in the service.
// Identifiers travel as text to keep the column codecs boring.

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `id, organization_id, user_ref, status, challenge_script, expires_at, attempts, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	script, err := json.Marshal(sess.ChallengeScript)
	if err != nil {
		return fmt.Errorf("marshal challenge script: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO kyc_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sess.ID.String(), sess.OrgID.String(), sess.UserRef, sess.Status, script,
		sess.ExpiresAt, sess.Attempts, sess.CreatedBy, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM kyc_sessions WHERE id = $1
	`, sessionID.String())
	return scanSession(row)
}

// Execute runs validate and mutate inside a transaction holding a row lock,
// the SQL equivalent of the in-memory store's mutex-across-both-callbacks.
func (s *PostgresStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*Session) error, mutate func(*Session)) (*Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM kyc_sessions WHERE id = $1 FOR UPDATE
	`, sessionID.String())
	sess, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(sess); err != nil {
			return nil, err
		}
	}
	mutate(sess)

	script, err := json.Marshal(sess.ChallengeScript)
	if err != nil {
		return nil, fmt.Errorf("marshal challenge script: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE kyc_sessions
		SET status = $1, challenge_script = $2, expires_at = $3, attempts = $4, updated_at = $5
		WHERE id = $6
	`, sess.Status, script, sess.ExpiresAt, sess.Attempts, sess.UpdatedAt, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sess, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess      Session
		rawID     string
		rawOrg    string
		rawScript []byte
	)
	err := row.Scan(&rawID, &rawOrg, &sess.UserRef, &sess.Status, &rawScript,
		&sess.ExpiresAt, &sess.Attempts, &sess.CreatedBy, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if sess.ID, err = id.ParseSessionID(rawID); err != nil {
		return nil, fmt.Errorf("stored session id: %w", err)
	}
	if sess.OrgID, err = id.ParseOrgID(rawOrg); err != nil {
		return nil, fmt.Errorf("stored organization id: %w", err)
	}
	sess.ChallengeScript = ParseChallengeScript(rawScript)
	return &sess, nil
}

type PostgresEvidenceStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEvidenceStore(pool *pgxpool.Pool) *PostgresEvidenceStore {
	return &PostgresEvidenceStore{pool: pool}
}

func (s *PostgresEvidenceStore) Append(ctx context.Context, e *Evidence) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kyc_evidence (id, session_id, media_type, storage_path, mime_type, checksum, size_bytes, status, uploaded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID.String(), e.SessionID.String(), e.MediaType, e.StoragePath, e.MimeType,
		e.Checksum, e.SizeBytes, e.Status, e.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *PostgresEvidenceStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]*Evidence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, media_type, storage_path, mime_type, checksum, size_bytes, status, uploaded_at
		FROM kyc_evidence WHERE session_id = $1 ORDER BY uploaded_at
	`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("select evidence: %w", err)
	}
	defer rows.Close()

	var out []*Evidence
	for rows.Next() {
		var (
			e       Evidence
			rawID   string
			rawSess string
		)
		if err := rows.Scan(&rawID, &rawSess, &e.MediaType, &e.StoragePath, &e.MimeType,
			&e.Checksum, &e.SizeBytes, &e.Status, &e.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		if e.ID, err = id.ParseEvidenceID(rawID); err != nil {
			return nil, fmt.Errorf("stored evidence id: %w", err)
		}
		if e.SessionID, err = id.ParseSessionID(rawSess); err != nil {
			return nil, fmt.Errorf("stored session id: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresEvidenceStore) TypesBySession(ctx context.Context, sessionID id.SessionID) (map[MediaType]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT media_type FROM kyc_evidence WHERE session_id = $1
	`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("select evidence types: %w", err)
	}
	defer rows.Close()

	types := make(map[MediaType]bool)
	for rows.Next() {
		var mt MediaType
		if err := rows.Scan(&mt); err != nil {
			return nil, fmt.Errorf("scan evidence type: %w", err)
		}
		types[mt] = true
	}
	return types, rows.Err()
}

type PostgresResultStore struct {
	pool *pgxpool.Pool
}

func NewPostgresResultStore(pool *pgxpool.Pool) *PostgresResultStore {
	return &PostgresResultStore{pool: pool}
}

func (s *PostgresResultStore) Upsert(ctx context.Context, r *Result) (*Result, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO kyc_results (id, session_id, liveness_score, face_match_score, reason_codes, manual_review, finalized_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (session_id) DO UPDATE SET
			liveness_score = EXCLUDED.liveness_score,
			face_match_score = EXCLUDED.face_match_score,
			reason_codes = EXCLUDED.reason_codes,
			manual_review = EXCLUDED.manual_review,
			finalized_at = EXCLUDED.finalized_at
		RETURNING id
	`, r.ID.String(), r.SessionID.String(), r.LivenessScore, r.FaceMatchScore,
		r.ReasonCodes, r.ManualReview, r.FinalizedAt)

	var rawID string
	err := row.Scan(&rawID)
	if err != nil {
		return nil, fmt.Errorf("upsert result: %w", err)
	}
	out := *r
	if out.ID, err = id.ParseResultID(rawID); err != nil {
		return nil, fmt.Errorf("stored result id: %w", err)
	}
	return &out, nil
}

func (s *PostgresResultStore) FindBySession(ctx context.Context, sessionID id.SessionID) (*Result, error) {
	var (
		r       Result
		rawID   string
		rawSess string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, session_id, liveness_score, face_match_score, reason_codes, manual_review, finalized_at
		FROM kyc_results WHERE session_id = $1
	`, sessionID.String())
	err := row.Scan(&rawID, &rawSess, &r.LivenessScore, &r.FaceMatchScore,
		&r.ReasonCodes, &r.ManualReview, &r.FinalizedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	if r.ID, err = id.ParseResultID(rawID); err != nil {
		return nil, fmt.Errorf("stored result id: %w", err)
	}
	if r.SessionID, err = id.ParseSessionID(rawSess); err != nil {
		return nil, fmt.Errorf("stored session id: %w", err)
	}
	return &r, nil
}
