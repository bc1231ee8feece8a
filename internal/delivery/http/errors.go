package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

const msgInternal = "An unexpected error occurred"

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrTokenNotFound) {
		return http.StatusUnauthorized
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrExpiredOrUsed),
		errors.Is(err, domain.ErrAuthToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInactiveAccount):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Only *domain.Error messages reach the client.
func writeError(c echo.Context, log zerolog.Logger, err error) error {
	status := statusFor(err)

	var de *domain.Error
	if status == http.StatusInternalServerError || !errors.As(err, &de) {
		event := log.Error().Err(err).Str("path", c.Path())
		if oopsErr, ok := oops.AsOops(err); ok {
			event = event.Interface("code", oopsErr.Code())
		}
		event.Msg("request failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Message: msgInternal, Errors: []string{}})
	}

	details := de.Details
	if details == nil {
		details = []string{}
	}
	return c.JSON(status, errorBody{Message: de.Message, Errors: details})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Message: message, Errors: []string{}})
}
