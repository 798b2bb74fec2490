// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	authctx "codeberg.org/oliverandrich/photobooth/internal/auth"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/photos"
	"github.com/labstack/echo/v4"
)

// OwnerView is the public profile attached to a photo.
type OwnerView struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

// PhotoView is the JSON shape of a photo.
type PhotoView struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	ContentType string     `json:"contentType"`
	Bytes       int64      `json:"bytes"`
	CreatedAt   time.Time  `json:"createdAt"`
	User        *OwnerView `json:"user"`
}

func newPhotoView(p *repository.PhotoWithOwner) PhotoView {
	v := PhotoView{
		ID:          p.ID,
		URL:         p.URL,
		ContentType: p.ContentType,
		Bytes:       p.SizeBytes,
		CreatedAt:   p.CreatedAt,
	}
	if p.UserID != nil && p.OwnerEmail != nil {
		v.User = &OwnerView{
			ID:        *p.UserID,
			Email:     p.OwnerEmail,
			Name:      p.OwnerName,
			AvatarURL: p.OwnerAvatarURL,
		}
	}
	return v
}

func newPhotoViews(list []repository.PhotoWithOwner) []PhotoView {
	views := make([]PhotoView, len(list))
	for i := range list {
		views[i] = newPhotoView(&list[i])
	}
	return views
}

// UploadPhoto stores the multipart field "photo" for the current user.
func (h *Handlers) UploadPhoto(c echo.Context) error {
	user := authctx.GetUser(c.Request().Context())

	file, err := c.FormFile("photo")
	if err != nil {
		return badRequest(c, `no file uploaded, use field name "photo"`)
	}
	if file.Size > photos.MaxSize {
		return errorResponse(c, photos.ErrTooLarge)
	}

	src, err := file.Open()
	if err != nil {
		return badRequest(c, "failed to read upload")
	}
	defer src.Close()

	photo, err := h.photos.Upload(c.Request().Context(), user.ID, src, file.Size)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"id":  photo.ID,
		"url": photo.URL,
	})
}

// ListPhotos returns the current user's photos, or every photo for admins.
func (h *Handlers) ListPhotos(c echo.Context) error {
	ctx := c.Request().Context()
	user := authctx.GetUser(ctx)

	var (
		list []repository.PhotoWithOwner
		err  error
	)
	if user.IsAdmin() {
		list, err = h.repo.ListPhotos(ctx)
	} else {
		list, err = h.repo.ListPhotosByUser(ctx, user.ID)
	}
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, newPhotoViews(list))
}

// GetPhoto returns one photo.
func (h *Handlers) GetPhoto(c echo.Context) error {
	photo, err := h.repo.GetPhotoWithOwner(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, newPhotoView(photo))
}

// DeletePhoto removes a photo owned by the current user. Admins may remove
// any photo.
func (h *Handlers) DeletePhoto(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.photos.Delete(ctx, authctx.GetUser(ctx), c.Param("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
