package verification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL verification repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const recordColumns = `id, email, code, state, attempts, created_at, expires_at, verified_at`

// Create inserts a new record.
func (r *PostgresRepository) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO email_verifications (id, email, code, state, attempts, created_at, expires_at, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Email,
		rec.Code,
		string(rec.State),
		rec.Attempts,
		rec.CreatedAt,
		rec.ExpiresAt,
		rec.VerifiedAt,
	)
	return err
}

// Latest returns the newest pending record for email.
func (r *PostgresRepository) Latest(ctx context.Context, email string) (*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM email_verifications
		WHERE email = $1 AND state = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

// FindVerified returns the verified record with id and email.
func (r *PostgresRepository) FindVerified(ctx context.Context, id, email string) (*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM email_verifications
		WHERE id = $1 AND email = $2 AND state = 'verified'
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id, email))
}

// Update writes the mutable fields of a record.
func (r *PostgresRepository) Update(ctx context.Context, rec *Record) error {
	query := `
		UPDATE email_verifications
		SET state = $2, attempts = $3, verified_at = $4
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, rec.ID, string(rec.State), rec.Attempts, rec.VerifiedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM email_verifications WHERE id = $1`, id)
	return err
}

// CountSince counts records for email created at or after since.
func (r *PostgresRepository) CountSince(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM email_verifications WHERE email = $1 AND created_at >= $2`,
		email, since,
	).Scan(&n)
	return n, err
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Record, error) {
	var (
		rec   Record
		state string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Email,
		&rec.Code,
		&state,
		&rec.Attempts,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.State = State(state)
	return &rec, nil
}
