package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/trader-console/internal/domain"
)

type postgresCredentialRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialRepository returns a Postgres-backed implementation using
// the single row id=1 of console_credentials.
func NewPostgresCredentialRepository(pool *pgxpool.Pool) CredentialRepository {
	return &postgresCredentialRepository{pool: pool}
}

func (r *postgresCredentialRepository) Get(ctx context.Context) (domain.Credential, error) {
	const query = `
        SELECT credential FROM console_credentials WHERE id=1`

	var credential string
	if err := r.pool.QueryRow(ctx, query).Scan(&credential); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return domain.Credential(credential), nil
}

func (r *postgresCredentialRepository) Set(ctx context.Context, credential domain.Credential) error {
	const query = `
        INSERT INTO console_credentials (id, credential)
        VALUES (1, $1)
        ON CONFLICT (id) DO UPDATE SET credential=EXCLUDED.credential, updated_at=NOW()`

	_, err := r.pool.Exec(ctx, query, string(credential))
	return err
}

func (r *postgresCredentialRepository) Clear(ctx context.Context) error {
	const query = `
        DELETE FROM console_credentials WHERE id=1`

	_, err := r.pool.Exec(ctx, query)
	return err
}
