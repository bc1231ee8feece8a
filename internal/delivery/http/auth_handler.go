package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/FilipeAphrody/authsys/internal/domain"
	"github.com/FilipeAphrody/authsys/pkg/security"
)

// AuthService is the usecase surface the handlers depend on.
type AuthService interface {
	Register(ctx context.Context, req domain.RegisterRequest, clientIP string) (*domain.AuthResponse, error)
	Login(ctx context.Context, email, password, clientIP string) (*domain.AuthResponse, error)
	VerifyTwoFactor(ctx context.Context, email, code, clientIP string) (*domain.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken, clientIP string) (*domain.AuthResponse, error)
	RevokeToken(ctx context.Context, refreshToken, clientIP string) error
	EnableTwoFactor(ctx context.Context, userID string) error
	DisableTwoFactor(ctx context.Context, userID string) error
	Authenticate(accessToken string) (*security.AccessClaims, error)
}

// AuthHandler serves the /api/auth routes.
type AuthHandler struct {
	usecase AuthService
	log     zerolog.Logger
}

// NewAuthHandler registers the authentication routes on g. Routes that need a
// signed-in caller go through protect.
func NewAuthHandler(g *echo.Group, u AuthService, protect echo.MiddlewareFunc, log zerolog.Logger) {
	handler := &AuthHandler{usecase: u, log: log}

	g.POST("/register", handler.Register)
	g.POST("/login", handler.Login)
	g.POST("/verify-2fa", handler.VerifyTwoFactor)
	g.POST("/refresh-token", handler.RefreshToken)
	g.POST("/revoke-token", handler.RevokeToken, protect)
	g.POST("/enable-2fa", handler.EnableTwoFactor, protect)
	g.POST("/disable-2fa", handler.DisableTwoFactor, protect)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type twoFactorRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req domain.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.usecase.Register(c.Request().Context(), req, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Login answers with tokens, or with requires_two_factor set when a code has
// been emailed instead.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.usecase.Login(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var req twoFactorRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.usecase.VerifyTwoFactor(c.Request().Context(), req.Email, req.Code, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	resp, err := h.usecase.RefreshToken(c.Request().Context(), req.RefreshToken, c.RealIP())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) RevokeToken(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	if err := h.usecase.RevokeToken(c.Request().Context(), req.RefreshToken, c.RealIP()); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Token revoked successfully"})
}
