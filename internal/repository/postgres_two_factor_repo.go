package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/authsys/internal/dbx"
	"github.com/FilipeAphrody/authsys/internal/domain"
)

// PostgresTwoFactorRepo stores one-time codes in two_factor_codes.
type PostgresTwoFactorRepo struct {
	db dbx.DBTX
}

var _ domain.TwoFactorCodeRepository = (*PostgresTwoFactorRepo)(nil)

func NewPostgresTwoFactorRepo(db dbx.DBTX) *PostgresTwoFactorRepo {
	return &PostgresTwoFactorRepo{db: db}
}

const twoFactorColumns = `id, user_id, code, expires_at, is_used, used_at, channel, created_at`

func scanTwoFactorCode(row rowScanner) (*domain.TwoFactorCode, error) {
	c := &domain.TwoFactorCode{}
	var usedAt sql.NullTime
	var channel string
	if err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &c.IsUsed, &usedAt, &channel, &c.CreatedAt); err != nil {
		return nil, translate(err)
	}
	c.UsedAt = timePtr(usedAt)
	c.Channel = domain.TwoFactorChannel(channel)
	return c, nil
}

func (r *PostgresTwoFactorRepo) Create(ctx context.Context, code *domain.TwoFactorCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.Channel == "" {
		code.Channel = domain.ChannelEmail
	}
	query := `
		INSERT INTO two_factor_codes (id, user_id, code, expires_at, is_used, channel, created_at)
		VALUES ($1, $2, $3, $4, false, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		code.ID, code.UserID, code.Code, code.ExpiresAt, string(code.Channel), code.CreatedAt)
	return translate(err)
}

// FindValid returns the newest matching code that is unused and unexpired at now.
func (r *PostgresTwoFactorRepo) FindValid(ctx context.Context, userID, code string, now time.Time) (*domain.TwoFactorCode, error) {
	query := `SELECT ` + twoFactorColumns + `
		FROM two_factor_codes
		WHERE user_id = $1 AND code = $2 AND is_used = false AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`
	return scanTwoFactorCode(r.db.QueryRowContext(ctx, query, userID, code, now))
}

// MarkUsed consumes the code only if nobody else already has.
func (r *PostgresTwoFactorRepo) MarkUsed(ctx context.Context, id string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_codes SET is_used = true, used_at = $2 WHERE id = $1 AND is_used = false`,
		id, now)
	if err != nil {
		return translate(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translate(err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresTwoFactorRepo) InvalidateOutstanding(ctx context.Context, userID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE two_factor_codes SET is_used = true, used_at = $2 WHERE user_id = $1 AND is_used = false`,
		userID, now)
	if err != nil {
		return 0, translate(err)
	}
	return result.RowsAffected()
}

func (r *PostgresTwoFactorRepo) ListByUser(ctx context.Context, userID string) ([]domain.TwoFactorCode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+twoFactorColumns+`
		FROM two_factor_codes
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []domain.TwoFactorCode
	for rows.Next() {
		c, err := scanTwoFactorCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// PurgeStale deletes codes whose expiry is older than before.
func (r *PostgresTwoFactorRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, translate(err)
	}
	return result.RowsAffected()
}
