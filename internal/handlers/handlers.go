// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON API.
package handlers

import (
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/auth"
	"codeberg.org/oliverandrich/photobooth/internal/services/framers"
	"codeberg.org/oliverandrich/photobooth/internal/services/oauth"
	"codeberg.org/oliverandrich/photobooth/internal/services/photos"
	"codeberg.org/oliverandrich/photobooth/internal/services/share"
	"github.com/labstack/echo/v4"
)

// Deps are the services the handlers call.
type Deps struct {
	Repo      *repository.Repository
	Auth      *auth.Gate
	Shares    *share.Gate
	Photos    *photos.Service
	Framers   *framers.Service
	Providers *oauth.Registry
	States    *oauth.StateStore
	// FrontendURL receives the browser after a federated sign-in.
	FrontendURL string
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo        *repository.Repository
	auth        *auth.Gate
	shares      *share.Gate
	photos      *photos.Service
	framers     *framers.Service
	providers   *oauth.Registry
	states      *oauth.StateStore
	frontendURL string
}

// New creates a new Handlers instance.
func New(d Deps) *Handlers {
	return &Handlers{
		repo:        d.Repo,
		auth:        d.Auth,
		shares:      d.Shares,
		photos:      d.Photos,
		framers:     d.Framers,
		providers:   d.Providers,
		states:      d.States,
		frontendURL: strings.TrimSuffix(d.FrontendURL, "/"),
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.repo.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
