// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	authctx "codeberg.org/oliverandrich/photobooth/internal/auth"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"github.com/labstack/echo/v4"
)

// AdminUserView is a user with statistics for the admin console.
type AdminUserView struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Name          *string         `json:"name"`
	AvatarURL     *string         `json:"avatarUrl"`
	EmailVerified bool            `json:"emailVerified"`
	Role          models.Role     `json:"role"`
	Provider      models.Provider `json:"provider"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	PhotoCount    int64           `json:"photoCount"`
}

// AdminListUsers returns every account with its photo count.
func (h *Handlers) AdminListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	users, err := h.repo.ListUsers(ctx)
	if err != nil {
		return errorResponse(c, err)
	}

	views := make([]AdminUserView, len(users))
	for i, u := range users {
		count, err := h.repo.CountPhotosByUser(ctx, u.ID)
		if err != nil {
			return errorResponse(c, err)
		}
		views[i] = AdminUserView{
			ID:            u.ID,
			Email:         u.Email,
			Name:          u.DisplayName,
			AvatarURL:     u.AvatarURL,
			EmailVerified: u.EmailVerified,
			Role:          u.Role,
			Provider:      u.Provider,
			CreatedAt:     u.CreatedAt,
			UpdatedAt:     u.UpdatedAt,
			PhotoCount:    count,
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"total": len(views),
		"users": views,
	})
}

// RoleRequest is the request body for a role change.
type RoleRequest struct {
	Role models.Role `json:"role"`
}

// AdminUpdateRole changes a user's role.
func (h *Handlers) AdminUpdateRole(c echo.Context) error {
	var req RoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if !req.Role.Valid() {
		return badRequest(c, `invalid role, must be "user" or "admin"`)
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.repo.UpdateUserRole(ctx, id, req.Role); err != nil {
		return errorResponse(c, err)
	}
	user, err := h.repo.GetUserByID(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

// AdminDeleteUser removes a user together with their photos.
func (h *Handlers) AdminDeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if current := authctx.GetUser(ctx); current != nil && current.ID == id {
		return badRequest(c, "cannot remove your own account")
	}

	if _, err := h.repo.GetUserByID(ctx, id); err != nil {
		return errorResponse(c, err)
	}
	if _, err := h.photos.RemoveUser(ctx, id); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// AdminListPhotos returns every photo, or those of the userId query parameter.
func (h *Handlers) AdminListPhotos(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		list []repository.PhotoWithOwner
		err  error
	)
	if userID := c.QueryParam("userId"); userID != "" {
		list, err = h.repo.ListPhotosByUser(ctx, userID)
	} else {
		list, err = h.repo.ListPhotos(ctx)
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"total":  len(list),
		"photos": newPhotoViews(list),
	})
}
