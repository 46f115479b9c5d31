package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResetCodeRepository interface {
	Create(ctx context.Context, userID int64, codeDigest string, expiresAt time.Time) error
	// Consume removes a matching unexpired code and returns its owner.
	// Returns 0 when no such code exists; a consumed code cannot be
	// consumed again.
	Consume(ctx context.Context, codeDigest string) (userID int64, err error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type resetCodeRepository struct {
	pool *pgxpool.Pool
}

func NewResetCodeRepository(pool *pgxpool.Pool) ResetCodeRepository {
	return &resetCodeRepository{pool: pool}
}

func (r *resetCodeRepository) Create(ctx context.Context, userID int64, codeDigest string, expiresAt time.Time) error {
	const q = `
		INSERT INTO reset_codes (user_id, code_digest, expires_at)
		VALUES ($1, $2, $3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, userID, codeDigest, expiresAt)
	return err
}

func (r *resetCodeRepository) Consume(ctx context.Context, codeDigest string) (int64, error) {
	const q = `
		DELETE FROM reset_codes
		WHERE code_digest = $1
		  AND expires_at > now()
		RETURNING user_id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var userID int64
	err := r.pool.QueryRow(ctx, q, codeDigest).Scan(&userID)
	if err == pgx.ErrNoRows {
		return 0, nil // invalid, used, or expired
	}
	return userID, err
}

func (r *resetCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM reset_codes WHERE expires_at < now()`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
