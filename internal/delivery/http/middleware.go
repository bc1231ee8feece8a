package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/FilipeAphrody/authsys/pkg/security"
)

const claimsKey = "claims"

// Authenticator validates bearer access tokens.
type Authenticator interface {
	Authenticate(accessToken string) (*security.AccessClaims, error)
}

// JWTMiddleware requires a valid "Bearer <token>" Authorization header and
// stores the token claims on the echo context.
func JWTMiddleware(auth Authenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				return unauthorized(c)
			}

			claims, err := auth.Authenticate(parts[1])
			if err != nil {
				return writeError(c, log, err)
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// RoleMiddleware lets through callers whose token carries role. It must run
// after JWTMiddleware.
func RoleMiddleware(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := claimsFrom(c)
			if !ok {
				return unauthorized(c)
			}
			if !claims.HasRole(role) {
				return c.JSON(http.StatusForbidden, errorBody{Message: "Access denied", Errors: []string{}})
			}
			return next(c)
		}
	}
}

// RequestLogger writes one zerolog line per request.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

func claimsFrom(c echo.Context) (*security.AccessClaims, bool) {
	claims, ok := c.Get(claimsKey).(*security.AccessClaims)
	return claims, ok && claims != nil
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized", Errors: []string{}})
}
