// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	authctx "codeberg.org/oliverandrich/photobooth/internal/auth"
	"codeberg.org/oliverandrich/photobooth/internal/i18n"
	"codeberg.org/oliverandrich/photobooth/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// RegisterRequest is the request body for password registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register creates an unverified account and sends its verification code.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	ctx := c.Request().Context()
	user, err := h.auth.Register(ctx, auth.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": i18n.T(ctx, "register_success"),
		"userId":  user.ID,
	})
}

// VerifyOTPRequest is the request body for code verification.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP redeems a verification code and returns a session.
func (h *Handlers) VerifyOTP(c echo.Context) error {
	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Email == "" || req.OTP == "" {
		return badRequest(c, "email and otp are required")
	}

	payload, err := h.auth.VerifyByCode(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, payload)
}

// VerifyEmail redeems a verification link token and returns a session.
func (h *Handlers) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return badRequest(c, "token is required")
	}

	payload, err := h.auth.VerifyByLink(c.Request().Context(), token)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, payload)
}

// ResendRequest is the request body for resending a verification code.
type ResendRequest struct {
	Email string `json:"email"`
}

// ResendOTP issues and sends a fresh verification code and link.
func (h *Handlers) ResendOTP(c echo.Context) error {
	var req ResendRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Email == "" {
		return badRequest(c, "email is required")
	}

	ctx := c.Request().Context()
	if err := h.auth.Resend(ctx, req.Email); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": i18n.T(ctx, "resend_success"),
	})
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	payload, err := h.auth.LoginPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, payload)
}

// Me returns the authenticated user.
func (h *Handlers) Me(c echo.Context) error {
	user := authctx.GetUser(c.Request().Context())
	return c.JSON(http.StatusOK, auth.NewUserView(user))
}
