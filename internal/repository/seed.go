package repository

import "github.com/FilipeAphrody/authsys/internal/domain"

// Reference data installed by the 00002 migration and by NewMemoryStore.
const (
	SeedRoleAdminID = "11111111-1111-1111-1111-111111111111"
	SeedRoleUserID  = "22222222-2222-2222-2222-222222222222"

	SeedPermUserReadID   = "33333333-3333-3333-3333-333333333333"
	SeedPermUserWriteID  = "44444444-4444-4444-4444-444444444444"
	SeedPermUserDeleteID = "55555555-5555-5555-5555-555555555555"
)

func seedRoles() []domain.Role {
	return []domain.Role{
		{ID: SeedRoleAdminID, Name: domain.RoleAdmin, Description: "Administrator role with full access"},
		{ID: SeedRoleUserID, Name: domain.RoleUser, Description: "Standard user role"},
	}
}

func seedPermissions() []domain.Permission {
	return []domain.Permission{
		{ID: SeedPermUserReadID, Name: "User Read", Resource: "User", Action: "Read", Description: "Can read user data"},
		{ID: SeedPermUserWriteID, Name: "User Write", Resource: "User", Action: "Write", Description: "Can create and update users"},
		{ID: SeedPermUserDeleteID, Name: "User Delete", Resource: "User", Action: "Delete", Description: "Can delete users"},
	}
}

func seedRolePermissions() []domain.RolePermission {
	return []domain.RolePermission{
		{RoleID: SeedRoleAdminID, PermissionID: SeedPermUserReadID},
		{RoleID: SeedRoleAdminID, PermissionID: SeedPermUserWriteID},
		{RoleID: SeedRoleAdminID, PermissionID: SeedPermUserDeleteID},
	}
}
