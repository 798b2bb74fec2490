// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/auth"
	"codeberg.org/oliverandrich/photobooth/internal/services/framers"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"codeberg.org/oliverandrich/photobooth/internal/services/oauth"
	"codeberg.org/oliverandrich/photobooth/internal/services/photos"
	"codeberg.org/oliverandrich/photobooth/internal/services/session"
	"codeberg.org/oliverandrich/photobooth/internal/services/share"
	"codeberg.org/oliverandrich/photobooth/internal/services/storage"
	"codeberg.org/oliverandrich/photobooth/internal/services/verification"
	"github.com/labstack/echo/v4"
)

// errorStatus maps domain errors to HTTP status codes.
var errorStatus = []struct {
	err    error
	status int
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrEmailNotVerified, http.StatusForbidden},
	{auth.ErrWeakPassword, http.StatusBadRequest},
	{auth.ErrInvalidEmail, http.StatusBadRequest},
	{verification.ErrInvalidOrExpired, http.StatusBadRequest},
	{verification.ErrAlreadyVerified, http.StatusBadRequest},
	{identity.ErrMissingEmail, http.StatusBadRequest},
	{identity.ErrInvalidAssertion, http.StatusBadRequest},
	{session.ErrInvalidToken, http.StatusUnauthorized},
	{session.ErrExpired, http.StatusUnauthorized},
	{share.ErrForbidden, http.StatusForbidden},
	{share.ErrNotFound, http.StatusNotFound},
	{oauth.ErrUnknownProvider, http.StatusNotFound},
	{oauth.ErrInvalidState, http.StatusBadRequest},
	{photos.ErrUnsupportedType, http.StatusBadRequest},
	{photos.ErrTooLarge, http.StatusBadRequest},
	{photos.ErrEmpty, http.StatusBadRequest},
	{photos.ErrForbidden, http.StatusForbidden},
	{framers.ErrInvalidLayout, http.StatusBadRequest},
	{framers.ErrInvalidImageURL, http.StatusBadRequest},
	{framers.ErrImageRequired, http.StatusBadRequest},
	{framers.ErrInvalidStatus, http.StatusBadRequest},
	{framers.ErrAlreadyReviewed, http.StatusConflict},
	{storage.ErrNotConfigured, http.StatusServiceUnavailable},
	{repository.ErrConflict, http.StatusConflict},
	{repository.ErrNotFound, http.StatusNotFound},
}

// errorResponse writes err as a JSON error body. Unmapped errors are logged
// and reported as 500 without detail.
func errorResponse(c echo.Context, err error) error {
	var pve *auth.PasswordValidationError
	if errors.As(err, &pve) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   err.Error(),
			"details": pve.Messages(),
		})
	}

	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, map[string]string{"error": m.err.Error()})
		}
	}

	slog.ErrorContext(c.Request().Context(), "request_failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
