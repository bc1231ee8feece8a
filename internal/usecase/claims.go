package usecase

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

// ClaimsAggregator flattens a user's roles and role-derived permissions.
type ClaimsAggregator struct{}

// Resolve returns role names and "Resource:Action" permissions in assignment
// order. Permissions granted by several roles appear once. Links pointing at
// rows that no longer exist are skipped.
func (ClaimsAggregator) Resolve(ctx context.Context, repos domain.Repositories, userID string) ([]string, []string, error) {
	roleIDs, err := repos.Roles().ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, nil, resolveErr("list user roles", userID, err)
	}

	roles := make([]string, 0, len(roleIDs))
	permissions := []string{}
	seen := make(map[string]struct{})

	for _, roleID := range roleIDs {
		role, err := repos.Roles().GetByID(ctx, roleID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, resolveErr("get role", userID, err)
		}
		roles = append(roles, role.Name)

		permIDs, err := repos.Permissions().ListIDsByRole(ctx, role.ID)
		if err != nil {
			return nil, nil, resolveErr("list role permissions", userID, err)
		}
		for _, permID := range permIDs {
			perm, err := repos.Permissions().GetByID(ctx, permID)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, nil, resolveErr("get permission", userID, err)
			}
			claim := perm.Claim()
			if _, dup := seen[claim]; dup {
				continue
			}
			seen[claim] = struct{}{}
			permissions = append(permissions, claim)
		}
	}

	return roles, permissions, nil
}

func resolveErr(operation, userID string, err error) error {
	return oops.Code("AUTH_CLAIMS_RESOLVE_FAILED").
		With("operation", operation).
		With("user_id", userID).
		Wrap(err)
}
