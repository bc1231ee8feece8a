package domain

import (
	"time"
)

// User represents the central identity entity of the system.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	PasswordHash       string     `json:"-"` // Never expose the password hash in JSON
	IsActive           bool       `json:"is_active"`
	IsEmailVerified    bool       `json:"is_email_verified"`
	IsTwoFactorEnabled bool       `json:"is_two_factor_enabled"`
	TwoFactorSecret    string     `json:"-"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Role groups permissions. Names are unique.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission is identified by its (Resource, Action) pair.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Claim renders the permission in the "Resource:Action" form carried by access tokens.
func (p Permission) Claim() string {
	return p.Resource + ":" + p.Action
}

// UserRole links a user to a role.
type UserRole struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}

// RolePermission links a role to a permission.
type RolePermission struct {
	RoleID       string
	PermissionID string
	AssignedAt   time.Time
}

// Seeded role names.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// UserProfile is the public projection of a user returned to clients.
type UserProfile struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	IsEmailVerified    bool     `json:"is_email_verified"`
	IsTwoFactorEnabled bool     `json:"is_two_factor_enabled"`
	Roles              []string `json:"roles"`
	Permissions        []string `json:"permissions"`
}

// NewUserProfile builds the profile for u with the resolved claims.
func NewUserProfile(u *User, roles, permissions []string) *UserProfile {
	return &UserProfile{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		IsEmailVerified:    u.IsEmailVerified,
		IsTwoFactorEnabled: u.IsTwoFactorEnabled,
		Roles:              roles,
		Permissions:        permissions,
	}
}

// AuthResponse defines the payload returned after a successful authentication step.
// When RequiresTwoFactor is set the token fields are empty.
type AuthResponse struct {
	AccessToken       string       `json:"access_token"`
	RefreshToken      string       `json:"refresh_token"`
	ExpiresAt         time.Time    `json:"expires_at"`
	RequiresTwoFactor bool         `json:"requires_two_factor"`
	User              *UserProfile `json:"user,omitempty"`
}

// RegisterRequest carries the self-registration input.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}
