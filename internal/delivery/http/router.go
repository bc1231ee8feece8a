package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

// RouterConfig collects what NewRouter wires together. Metrics and Health
// are optional.
type RouterConfig struct {
	Auth    AuthService
	Metrics http.Handler
	Health  func(ctx context.Context) error
	Logger  zerolog.Logger
	Version string
}

// NewRouter builds the echo server with every route registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(RequestLogger(cfg.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())

	protect := JWTMiddleware(cfg.Auth, cfg.Logger)

	NewAuthHandler(e.Group("/api/auth"), cfg.Auth, protect, cfg.Logger)
	NewUsersHandler(e.Group("/api/users"), protect, RoleMiddleware(domain.RoleAdmin))

	e.GET("/health", func(c echo.Context) error {
		status, code := "healthy", http.StatusOK
		if cfg.Health != nil {
			if err := cfg.Health(c.Request().Context()); err != nil {
				cfg.Logger.Warn().Err(err).Msg("health check failed")
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}
		return c.JSON(code, echo.Map{
			"status":  status,
			"version": cfg.Version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	return e
}
