// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

// OAuthStart redirects the browser to the provider's consent page.
func (h *Handlers) OAuthStart(c echo.Context) error {
	provider, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		return errorResponse(c, err)
	}

	state, err := h.states.Begin(c.Response(), provider.Name())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// OAuthCallback completes a federated sign-in and hands the session token to
// the frontend. Failures redirect to the frontend login page with an error
// code.
func (h *Handlers) OAuthCallback(c echo.Context) error {
	provider, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		return errorResponse(c, err)
	}

	ctx := c.Request().Context()
	if err := h.states.Verify(c.Response(), c.Request(), provider.Name(), c.QueryParam("state")); err != nil {
		slog.WarnContext(ctx, "oauth_callback_failed", "provider", provider.Name(), "reason", "invalid_state")
		return h.oauthFailure(c, "invalid_state")
	}

	if denied := c.QueryParam("error"); denied != "" {
		slog.WarnContext(ctx, "oauth_callback_failed", "provider", provider.Name(), "reason", denied)
		return h.oauthFailure(c, "access_denied")
	}

	code := c.QueryParam("code")
	if code == "" {
		return h.oauthFailure(c, "missing_code")
	}

	assertion, err := provider.Exchange(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "oauth_exchange_failed", "provider", provider.Name(), "error", err)
		return h.oauthFailure(c, "exchange_failed")
	}

	payload, err := h.auth.LoginFederated(ctx, assertion)
	if err != nil {
		return h.oauthFailure(c, "login_failed")
	}

	return c.Redirect(http.StatusFound,
		h.frontendURL+"/auth/callback?token="+url.QueryEscape(payload.AccessToken))
}

func (h *Handlers) oauthFailure(c echo.Context, reason string) error {
	return c.Redirect(http.StatusFound, h.frontendURL+"/login?error="+url.QueryEscape(reason))
}
