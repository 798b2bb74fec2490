// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"io"
	"net/http"

	authctx "codeberg.org/oliverandrich/photobooth/internal/auth"
	"codeberg.org/oliverandrich/photobooth/internal/services/framers"
	"codeberg.org/oliverandrich/photobooth/internal/services/photos"
	"github.com/labstack/echo/v4"
)

// FramerRequest is the JSON body for creating a frame from a link and for
// updating a frame. Absent fields are left unchanged on update.
type FramerRequest struct {
	Name     *string `json:"name"`
	Layout   *string `json:"layoutType"`
	ImageURL *string `json:"imageUrl"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// formImage opens the optional multipart field "photo". The returned closer
// is never nil.
func formImage(c echo.Context) (*framers.Upload, io.Closer, error) {
	file, err := c.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, io.NopCloser(nil), nil
	}
	if err != nil {
		return nil, nil, err
	}
	if file.Size > photos.MaxSize {
		return nil, nil, photos.ErrTooLarge
	}
	src, err := file.Open()
	if err != nil {
		return nil, nil, err
	}
	return &framers.Upload{Body: src, Size: file.Size}, src, nil
}

// ListFramers returns every frame image.
func (h *Handlers) ListFramers(c echo.Context) error {
	list, err := h.framers.List(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"framers": list})
}

// GetFramer returns one frame image.
func (h *Handlers) GetFramer(c echo.Context) error {
	framer, err := h.framers.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, framer)
}

// AdminCreateFramer uploads the multipart field "photo" as a new frame.
// The form also carries "name" and "layoutType".
func (h *Handlers) AdminCreateFramer(c echo.Context) error {
	image, closer, err := formImage(c)
	if err != nil {
		return errorResponse(c, err)
	}
	defer closer.Close()
	if image == nil {
		return badRequest(c, `no file uploaded, use field name "photo"`)
	}

	framer, err := h.framers.Create(c.Request().Context(), framers.CreateParams{
		Name:   c.FormValue("name"),
		Layout: c.FormValue("layoutType"),
		Image:  image,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, framer)
}

// AdminCreateFramerFromURL publishes a frame that lives at an existing link.
func (h *Handlers) AdminCreateFramerFromURL(c echo.Context) error {
	var req FramerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if deref(req.ImageURL) == "" {
		return errorResponse(c, framers.ErrImageRequired)
	}

	framer, err := h.framers.Create(c.Request().Context(), framers.CreateParams{
		Name:     deref(req.Name),
		Layout:   deref(req.Layout),
		ImageURL: deref(req.ImageURL),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, framer)
}

// AdminUpdateFramer changes the name, layout or link of a frame.
func (h *Handlers) AdminUpdateFramer(c echo.Context) error {
	var req FramerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	framer, err := h.framers.Update(c.Request().Context(), c.Param("id"), framers.UpdateParams{
		Name:     req.Name,
		Layout:   req.Layout,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, framer)
}

// AdminDeleteFramer removes a frame and its image.
func (h *Handlers) AdminDeleteFramer(c echo.Context) error {
	if err := h.framers.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// SubmitFramer records a frame proposed by the current user. The image is
// the multipart field "photo" or the form value "imageUrl".
func (h *Handlers) SubmitFramer(c echo.Context) error {
	ctx := c.Request().Context()
	user := authctx.GetUser(ctx)

	image, closer, err := formImage(c)
	if err != nil {
		return errorResponse(c, err)
	}
	defer closer.Close()

	contribution, err := h.framers.Submit(ctx, user.ID, framers.CreateParams{
		Name:     c.FormValue("name"),
		Layout:   c.FormValue("layoutType"),
		ImageURL: c.FormValue("imageUrl"),
		Image:    image,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, contribution)
}

// MyFramerContributions lists the current user's submissions.
func (h *Handlers) MyFramerContributions(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := h.framers.Mine(ctx, authctx.GetUser(ctx).ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"contributions": list})
}

// AdminListFramerContributions lists submissions, optionally filtered by the
// "status" query parameter.
func (h *Handlers) AdminListFramerContributions(c echo.Context) error {
	list, err := h.framers.Contributions(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"contributions": list})
}

// AdminAcceptFramerContribution publishes a pending submission.
func (h *Handlers) AdminAcceptFramerContribution(c echo.Context) error {
	ctx := c.Request().Context()
	framer, err := h.framers.Approve(ctx, c.Param("id"), authctx.GetUser(ctx).ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "framer": framer})
}

// AdminRejectFramerContribution declines a pending submission.
func (h *Handlers) AdminRejectFramerContribution(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.framers.Reject(ctx, c.Param("id"), authctx.GetUser(ctx).ID); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
