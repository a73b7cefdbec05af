package grantrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-assistant/internal/domain/auth"
)

const (
	// The assistant links a single Google account.
	grantKey = "default"

	schema = `
CREATE TABLE IF NOT EXISTS google_grants (
	grant_key     TEXT PRIMARY KEY,
	subject       TEXT        NOT NULL,
	email         TEXT        NOT NULL,
	refresh_token TEXT        NOT NULL,
	scopes        TEXT[]      NOT NULL DEFAULT '{}',
	linked_at     TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);`
)

// PostgresRepository persists the linked grant in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the table when it is missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context) (auth.Grant, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT subject, email, refresh_token, scopes, linked_at, updated_at
		FROM google_grants
		WHERE grant_key = $1
	`, grantKey)
	grant, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Grant{}, false, nil
	}
	if err != nil {
		return auth.Grant{}, false, err
	}
	return grant, true, nil
}

func (r *PostgresRepository) Save(ctx context.Context, grant auth.Grant) error {
	if grant.Scopes == nil {
		grant.Scopes = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO google_grants (grant_key, subject, email, refresh_token, scopes, linked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (grant_key) DO UPDATE SET
			subject = EXCLUDED.subject,
			email = EXCLUDED.email,
			refresh_token = EXCLUDED.refresh_token,
			scopes = EXCLUDED.scopes,
			linked_at = EXCLUDED.linked_at,
			updated_at = EXCLUDED.updated_at
	`, grantKey, grant.Subject, grant.Email, grant.RefreshToken, grant.Scopes, grant.LinkedAt, grant.UpdatedAt)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM google_grants WHERE grant_key = $1`, grantKey)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (auth.Grant, error) {
	var (
		grant           auth.Grant
		linked, updated time.Time
	)
	if err := row.Scan(&grant.Subject, &grant.Email, &grant.RefreshToken, &grant.Scopes, &linked, &updated); err != nil {
		return auth.Grant{}, err
	}
	grant.LinkedAt = linked.UTC()
	grant.UpdatedAt = updated.UTC()
	return grant, nil
}

var _ auth.GrantRepository = (*PostgresRepository)(nil)
