// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	authctx "codeberg.org/oliverandrich/photobooth/internal/auth"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/share"
	"github.com/labstack/echo/v4"
)

// CreateShare returns a share link for a photo, minting one if needed.
func (h *Handlers) CreateShare(c echo.Context) error {
	ctx := c.Request().Context()
	photo, err := h.repo.GetPhotoByID(ctx, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if err := share.Authorize(authctx.GetUser(ctx), photo.UserID); err != nil {
		return errorResponse(c, err)
	}

	link, err := h.shares.CreateLink(ctx, photo.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	status := http.StatusOK
	if link.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, link)
}

// GetShare returns the newest share link of a photo, or null.
func (h *Handlers) GetShare(c echo.Context) error {
	ctx := c.Request().Context()
	photo, err := h.repo.GetPhotoByID(ctx, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if err := share.Authorize(authctx.GetUser(ctx), photo.UserID); err != nil {
		return errorResponse(c, err)
	}

	link, err := h.shares.Current(ctx, photo.ID)
	if err != nil {
		if errors.Is(err, share.ErrNotFound) {
			return c.JSON(http.StatusOK, nil)
		}
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, link)
}

// SharedPhoto returns the photo behind a share token without authentication.
func (h *Handlers) SharedPhoto(c echo.Context) error {
	ctx := c.Request().Context()
	resourceID, err := h.shares.Redeem(ctx, c.Param("token"))
	if err != nil {
		return errorResponse(c, err)
	}

	photo, err := h.repo.GetPhotoWithOwner(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, share.ErrNotFound)
		}
		return errorResponse(c, err)
	}

	v := newPhotoView(photo)
	return c.JSON(http.StatusOK, map[string]any{
		"id":        v.ID,
		"url":       v.URL,
		"createdAt": v.CreatedAt,
		"user":      v.User,
	})
}
