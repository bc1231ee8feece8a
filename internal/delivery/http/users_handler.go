package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// currentUser is built from the access-token claims alone.
type currentUser struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// NewUsersHandler registers the /api/users routes. Every route requires a
// signed-in caller; listing also requires the admin role.
func NewUsersHandler(g *echo.Group, protect, adminOnly echo.MiddlewareFunc) {
	g.Use(protect)
	g.GET("/me", Me)
	g.GET("", ListUsers, adminOnly)
}

func Me(c echo.Context) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	permissions := claims.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	return c.JSON(http.StatusOK, currentUser{
		ID:          claims.Subject,
		Email:       claims.Email,
		FirstName:   claims.GivenName,
		LastName:    claims.FamilyName,
		Roles:       roles,
		Permissions: permissions,
	})
}

// ListUsers is a placeholder guarded by the admin role.
func ListUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "This endpoint returns all users - only accessible by Admins"})
}
