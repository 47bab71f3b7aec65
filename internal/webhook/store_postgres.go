package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "kyc-service/pkg/domain"
	"kyc-service/pkg/platform/sentinel"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, e *Endpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_endpoints (id, organization_id, url, secret, event_types, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID.String(), e.OrgID.String(), e.URL, e.Secret, e.EventTypes, e.Active, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert endpoint: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, endpointID id.EndpointID) (*Endpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, url, secret, event_types, active, created_at
		FROM webhook_endpoints WHERE id = $1
	`, endpointID.String())
	e, err := scanEndpoint(row)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) ListActiveByOrg(ctx context.Context, orgID id.OrgID) ([]*Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, url, secret, event_types, active, created_at
		FROM webhook_endpoints WHERE organization_id = $1 AND active
	`, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("select endpoints: %w", err)
	}
	defer rows.Close()

	var out []*Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Deactivate(ctx context.Context, endpointID id.EndpointID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_endpoints SET active = FALSE WHERE id = $1
	`, endpointID.String())
	if err != nil {
		return fmt.Errorf("deactivate endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanEndpoint(row pgx.Row) (*Endpoint, error) {
	var (
		e      Endpoint
		rawID  string
		rawOrg string
	)
	err := row.Scan(&rawID, &rawOrg, &e.URL, &e.Secret, &e.EventTypes, &e.Active, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan endpoint: %w", err)
	}
	if e.ID, err = id.ParseEndpointID(rawID); err != nil {
		return nil, fmt.Errorf("stored endpoint id: %w", err)
	}
	if e.OrgID, err = id.ParseOrgID(rawOrg); err != nil {
		return nil, fmt.Errorf("stored organization id: %w", err)
	}
	return &e, nil
}
