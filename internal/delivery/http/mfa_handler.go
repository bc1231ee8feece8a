package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// EnableTwoFactor turns on emailed login codes for the caller.
func (h *AuthHandler) EnableTwoFactor(c echo.Context) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.usecase.EnableTwoFactor(c.Request().Context(), claims.Subject); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Two-factor authentication enabled successfully"})
}

// DisableTwoFactor turns two-factor off for the caller.
func (h *AuthHandler) DisableTwoFactor(c echo.Context) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.usecase.DisableTwoFactor(c.Request().Context(), claims.Subject); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Two-factor authentication disabled successfully"})
}
