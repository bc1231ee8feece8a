package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/FilipeAphrody/authsys/internal/dbx"
	"github.com/FilipeAphrody/authsys/internal/domain"
	"github.com/FilipeAphrody/authsys/internal/repository/migrations"
)

// PostgreSQL error codes we translate.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresStore implements domain.Store on database/sql with the lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

var _ domain.Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithTx runs fn against repositories bound to a single transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, postgresRepos{db: tx})
	})
}

func (s *PostgresStore) Users() domain.UserRepository { return NewPostgresUserRepo(s.db) }
func (s *PostgresStore) Roles() domain.RoleRepository { return NewPostgresRoleRepo(s.db) }
func (s *PostgresStore) Permissions() domain.PermissionRepository {
	return NewPostgresPermissionRepo(s.db)
}
func (s *PostgresStore) RefreshTokens() domain.RefreshTokenRepository {
	return NewPostgresRefreshTokenRepo(s.db)
}
func (s *PostgresStore) TwoFactorCodes() domain.TwoFactorCodeRepository {
	return NewPostgresTwoFactorRepo(s.db)
}

// postgresRepos vends repositories bound to one DBTX.
type postgresRepos struct {
	db dbx.DBTX
}

func (r postgresRepos) Users() domain.UserRepository { return NewPostgresUserRepo(r.db) }
func (r postgresRepos) Roles() domain.RoleRepository { return NewPostgresRoleRepo(r.db) }
func (r postgresRepos) Permissions() domain.PermissionRepository { return NewPostgresPermissionRepo(r.db) }
func (r postgresRepos) RefreshTokens() domain.RefreshTokenRepository {
	return NewPostgresRefreshTokenRepo(r.db)
}
func (r postgresRepos) TwoFactorCodes() domain.TwoFactorCodeRepository {
	return NewPostgresTwoFactorRepo(r.db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema and seed migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// translate maps driver errors onto domain sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return domain.ErrUniqueViolation
		case pqForeignKeyViolation:
			return domain.ErrNotFound
		}
	}
	return fmt.Errorf("database error: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
