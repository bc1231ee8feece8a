package repository

import (
	"context"
	"time"

	"github.com/FilipeAphrody/authsys/internal/dbx"
	"github.com/FilipeAphrody/authsys/internal/domain"
)

// PostgresRoleRepo implements domain.RoleRepository.
type PostgresRoleRepo struct {
	db dbx.DBTX
}

var _ domain.RoleRepository = (*PostgresRoleRepo)(nil)

func NewPostgresRoleRepo(db dbx.DBTX) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: db}
}

func (r *PostgresRoleRepo) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	role := &domain.Role{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return role, nil
}

func (r *PostgresRoleRepo) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	role := &domain.Role{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM roles WHERE name = $1`, name,
	).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return role, nil
}

// ListIDsByUser returns the user's role ids in assignment order.
func (r *PostgresRoleRepo) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	return queryIDs(ctx, r.db,
		`SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY assigned_at, role_id`, userID)
}

func (r *PostgresRoleRepo) AssignToUser(ctx context.Context, userID, roleID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES ($1, $2, $3)`,
		userID, roleID, at)
	return translate(err)
}

// PostgresPermissionRepo implements domain.PermissionRepository.
type PostgresPermissionRepo struct {
	db dbx.DBTX
}

var _ domain.PermissionRepository = (*PostgresPermissionRepo)(nil)

func NewPostgresPermissionRepo(db dbx.DBTX) *PostgresPermissionRepo {
	return &PostgresPermissionRepo{db: db}
}

func (r *PostgresPermissionRepo) GetByID(ctx context.Context, id string) (*domain.Permission, error) {
	p := &domain.Permission{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, resource, action, description, created_at FROM permissions WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// ListIDsByRole returns the role's permission ids in assignment order.
func (r *PostgresPermissionRepo) ListIDsByRole(ctx context.Context, roleID string) ([]string, error) {
	return queryIDs(ctx, r.db,
		`SELECT permission_id FROM role_permissions WHERE role_id = $1 ORDER BY assigned_at, permission_id`, roleID)
}

func (r *PostgresPermissionRepo) AssignToRole(ctx context.Context, roleID, permissionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO role_permissions (role_id, permission_id, assigned_at) VALUES ($1, $2, $3)`,
		roleID, permissionID, at)
	return translate(err)
}

func queryIDs(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, translate(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return ids, nil
}
