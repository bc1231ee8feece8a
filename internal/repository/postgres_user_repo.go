package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/authsys/internal/dbx"
	"github.com/FilipeAphrody/authsys/internal/domain"
)

// PostgresUserRepo implements domain.UserRepository using PostgreSQL.
type PostgresUserRepo struct {
	db dbx.DBTX
}

var _ domain.UserRepository = (*PostgresUserRepo)(nil)

// NewPostgresUserRepo creates a new repository instance.
func NewPostgresUserRepo(db dbx.DBTX) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, first_name, last_name, password_hash, is_active, is_email_verified,
		is_two_factor_enabled, COALESCE(two_factor_secret, ''), last_login_at, created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsEmailVerified,
		&user.IsTwoFactorEnabled,
		&user.TwoFactorSecret,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	user.LastLoginAt = timePtr(lastLogin)
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a user by their UUID.
func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// ExistsByEmail reports whether an account already uses email.
func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email,
	).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

// Create inserts a new user. The unique index on lower(email) rejects duplicates.
func (r *PostgresUserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, is_active, is_email_verified,
			is_two_factor_enabled, two_factor_secret, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.IsTwoFactorEnabled,
		nullString(user.TwoFactorSecret),
		nullTime(user.LastLoginAt),
		user.CreatedAt,
		user.UpdatedAt,
	)
	return translate(err)
}

// Update overwrites the mutable columns of an existing user.
func (r *PostgresUserRepo) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, password_hash = $4, is_active = $5,
			is_email_verified = $6, is_two_factor_enabled = $7, two_factor_secret = $8,
			last_login_at = $9, updated_at = $10
		WHERE id = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		user.IsTwoFactorEnabled,
		nullString(user.TwoFactorSecret),
		nullTime(user.LastLoginAt),
		user.UpdatedAt,
		user.ID,
	)
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
