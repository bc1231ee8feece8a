package domain

import (
	"context"
	"time"
)

// UserRepository defines the contract for user data persistence.
// Lookups return ErrNotFound when no row matches; writes return
// ErrUniqueViolation when the email is already taken.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *User) error
}

// RoleRepository resolves roles and the user to role join table.
type RoleRepository interface {
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	// ListIDsByUser returns role ids in assignment order.
	ListIDsByUser(ctx context.Context, userID string) ([]string, error)
	AssignToUser(ctx context.Context, userID, roleID string, at time.Time) error
}

// PermissionRepository resolves permissions and the role to permission join table.
type PermissionRepository interface {
	GetByID(ctx context.Context, id string) (*Permission, error)
	// ListIDsByRole returns permission ids in assignment order.
	ListIDsByRole(ctx context.Context, roleID string) ([]string, error)
	AssignToRole(ctx context.Context, roleID, permissionID string, at time.Time) error
}

// RefreshTokenRepository keeps the refresh-token ledger.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	// FindActive returns ErrNotFound unless the token exists, is not revoked and has not expired at now.
	FindActive(ctx context.Context, token string, now time.Time) (*RefreshToken, error)
	// Revoke flips an active token to revoked in one conditional write.
	// It returns ErrNotFound when the token was not active.
	Revoke(ctx context.Context, token, byIP string, now time.Time) (*RefreshToken, error)
	ListByUser(ctx context.Context, userID string) ([]RefreshToken, error)
}

// TwoFactorCodeRepository stores one-time codes.
type TwoFactorCodeRepository interface {
	Create(ctx context.Context, code *TwoFactorCode) error
	// FindValid returns the newest unused, unexpired code matching userID and code.
	FindValid(ctx context.Context, userID, code string, now time.Time) (*TwoFactorCode, error)
	// MarkUsed consumes the code. It returns ErrNotFound when it was already used.
	MarkUsed(ctx context.Context, id string, now time.Time) error
	// InvalidateOutstanding marks every unused code of the user as used.
	InvalidateOutstanding(ctx context.Context, userID string, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]TwoFactorCode, error)
	// PurgeStale deletes codes that expired before the cutoff.
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// Repositories vends per-entity repositories bound to one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Roles() RoleRepository
	Permissions() PermissionRepository
	RefreshTokens() RefreshTokenRepository
	TwoFactorCodes() TwoFactorCodeRepository
}

// Store is the persistent record store. WithTx commits when fn returns nil
// and rolls back otherwise, including on panic and context cancellation.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Notifier delivers messages to users. Callers treat delivery as best effort.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
	SendTwoFactorCode(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, firstName string) error
}
