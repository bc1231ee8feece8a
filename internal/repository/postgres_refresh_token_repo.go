package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/authsys/internal/dbx"
	"github.com/FilipeAphrody/authsys/internal/domain"
)

// PostgresRefreshTokenRepo keeps the refresh-token ledger in the refresh_tokens table.
type PostgresRefreshTokenRepo struct {
	db dbx.DBTX
}

var _ domain.RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)

func NewPostgresRefreshTokenRepo(db dbx.DBTX) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

const refreshTokenColumns = `id, user_id, token, expires_at, is_revoked, revoked_at,
		COALESCE(revoked_by_ip, ''), COALESCE(created_by_ip, ''), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (*domain.RefreshToken, error) {
	t := &domain.RefreshToken{}
	var revokedAt sql.NullTime
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Token,
		&t.ExpiresAt,
		&t.IsRevoked,
		&revokedAt,
		&t.RevokedByIP,
		&t.CreatedByIP,
		&t.CreatedAt,
	); err != nil {
		return nil, translate(err)
	}
	t.RevokedAt = timePtr(revokedAt)
	return t, nil
}

// Create inserts a new active token.
func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, is_revoked, created_by_ip, created_at)
		VALUES ($1, $2, $3, $4, false, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.Token, token.ExpiresAt, nullString(token.CreatedByIP), token.CreatedAt)
	return translate(err)
}

// FindActive returns the token if it is neither revoked nor expired at now.
func (r *PostgresRefreshTokenRepo) FindActive(ctx context.Context, token string, now time.Time) (*domain.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token = $1 AND is_revoked = false AND expires_at > $2`
	return scanRefreshToken(r.db.QueryRowContext(ctx, query, token, now))
}

// Revoke is a single conditional update, so of two concurrent callers only one
// sees the row; the other gets domain.ErrNotFound.
func (r *PostgresRefreshTokenRepo) Revoke(ctx context.Context, token, byIP string, now time.Time) (*domain.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = true, revoked_at = $3, revoked_by_ip = $2
		WHERE token = $1 AND is_revoked = false AND expires_at > $3
		RETURNING ` + refreshTokenColumns
	return scanRefreshToken(r.db.QueryRowContext(ctx, query, token, nullString(byIP), now))
}

// ListByUser returns every token ever issued to the user, oldest first.
func (r *PostgresRefreshTokenRepo) ListByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}
