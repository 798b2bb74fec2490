// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package framers manages the frame images photo strips are composed into,
// and the frames users submit for review.
package framers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/i18n"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/photos"
	"codeberg.org/oliverandrich/photobooth/internal/services/storage"
	"github.com/google/uuid"
)

var (
	ErrInvalidLayout   = errors.New("layoutType must be one of: 1x4, 2x3, 2x2")
	ErrInvalidImageURL = errors.New("imageUrl must be an http or https URL")
	ErrImageRequired   = errors.New("send an image file (photo) or an image link (imageUrl)")
	ErrInvalidStatus   = errors.New("status must be one of: pending, approved, rejected")
	ErrAlreadyReviewed = errors.New("contribution has already been reviewed")
)

// Store is the persistence the service needs.
type Store interface {
	CreateFramer(ctx context.Context, f *models.Framer) error
	GetFramerByID(ctx context.Context, id string) (*models.Framer, error)
	ListFramers(ctx context.Context) ([]models.Framer, error)
	UpdateFramer(ctx context.Context, f *models.Framer) error
	DeleteFramer(ctx context.Context, id string) error

	CreateContribution(ctx context.Context, c *models.FramerContribution) error
	ListContributionsByUser(ctx context.Context, userID string) ([]models.FramerContribution, error)
	ListContributions(ctx context.Context, status models.ContributionStatus) ([]models.FramerContribution, error)
	ApproveContribution(ctx context.Context, id, reviewerID string, now time.Time) (*models.Framer, error)
	RejectContribution(ctx context.Context, id, reviewerID string, now time.Time) (*models.FramerContribution, error)
}

// Service manages frame images. objects may be nil; then only link-based
// frames can be created.
type Service struct {
	store   Store
	objects storage.ObjectStore
	now     func() time.Time
}

// NewService creates a Service.
func NewService(store Store, objects storage.ObjectStore) *Service {
	return &Service{store: store, objects: objects, now: time.Now}
}

// Upload is an image file sent with a request.
type Upload struct {
	Body io.Reader
	Size int64
}

// CreateParams describes a new frame image.
type CreateParams struct {
	Name     string
	Layout   string
	ImageURL string
	Image    *Upload
}

// Create publishes a frame image, either from an uploaded file or from an
// existing link. Uploaded images get their aspect ratio recorded.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Framer, error) {
	layout, err := parseLayout(p.Layout)
	if err != nil {
		return nil, err
	}

	framer := &models.Framer{
		ID:        uuid.NewString(),
		Name:      nameOr(ctx, p.Name, "framer_default_name"),
		Layout:    layout,
		CreatedAt: s.now().UTC(),
	}

	switch {
	case p.Image != nil:
		stored, err := s.storeImage(ctx, p.Image, storage.FramerKey)
		if err != nil {
			return nil, err
		}
		framer.ImageURL = stored.url
		framer.ObjectKey = &stored.key
		framer.AspectRatio = stored.aspectRatio
	case strings.TrimSpace(p.ImageURL) != "":
		if framer.ImageURL, err = parseImageURL(p.ImageURL); err != nil {
			return nil, err
		}
	default:
		return nil, ErrImageRequired
	}

	if err := s.store.CreateFramer(ctx, framer); err != nil {
		s.deleteObject(ctx, framer.ObjectKey)
		return nil, fmt.Errorf("failed to save framer: %w", err)
	}

	slog.InfoContext(ctx, "framer_created", "framer_id", framer.ID, "layout", framer.Layout)
	return framer, nil
}

// List returns every frame image, newest first.
func (s *Service) List(ctx context.Context) ([]models.Framer, error) {
	return s.store.ListFramers(ctx)
}

// Get returns one frame image.
func (s *Service) Get(ctx context.Context, id string) (*models.Framer, error) {
	return s.store.GetFramerByID(ctx, id)
}

// UpdateParams holds the fields to change. Nil or blank fields are kept.
type UpdateParams struct {
	Name     *string
	Layout   *string
	ImageURL *string
}

// Update changes a frame image. Pointing it at a new link releases the
// object it was uploaded to.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (*models.Framer, error) {
	framer, err := s.store.GetFramerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Layout != nil {
		if framer.Layout, err = parseLayout(*p.Layout); err != nil {
			return nil, err
		}
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		framer.Name = strings.TrimSpace(*p.Name)
	}

	var released *string
	if p.ImageURL != nil && strings.TrimSpace(*p.ImageURL) != "" {
		imageURL, err := parseImageURL(*p.ImageURL)
		if err != nil {
			return nil, err
		}
		if imageURL != framer.ImageURL {
			released = framer.ObjectKey
			framer.ImageURL = imageURL
			framer.ObjectKey = nil
			framer.AspectRatio = nil
		}
	}

	if err := s.store.UpdateFramer(ctx, framer); err != nil {
		return nil, err
	}
	s.deleteObject(ctx, released)

	slog.InfoContext(ctx, "framer_updated", "framer_id", framer.ID)
	return framer, nil
}

// Delete removes a frame image and its object.
func (s *Service) Delete(ctx context.Context, id string) error {
	framer, err := s.store.GetFramerByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFramer(ctx, id); err != nil {
		return err
	}
	s.deleteObject(ctx, framer.ObjectKey)

	slog.InfoContext(ctx, "framer_deleted", "framer_id", id)
	return nil
}

// Submit records a frame image proposed by userID for admin review.
func (s *Service) Submit(ctx context.Context, userID string, p CreateParams) (*models.FramerContribution, error) {
	layout, err := parseLayout(p.Layout)
	if err != nil {
		return nil, err
	}

	c := &models.FramerContribution{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      nameOr(ctx, p.Name, "contribution_default_name"),
		Layout:    layout,
		Status:    models.ContributionPending,
		CreatedAt: s.now().UTC(),
	}

	switch {
	case p.Image != nil:
		stored, err := s.storeImage(ctx, p.Image, storage.ContributionKey)
		if err != nil {
			return nil, err
		}
		c.ImageURL = stored.url
		c.ObjectKey = &stored.key
	case strings.TrimSpace(p.ImageURL) != "":
		if c.ImageURL, err = parseImageURL(p.ImageURL); err != nil {
			return nil, err
		}
	default:
		return nil, ErrImageRequired
	}

	if err := s.store.CreateContribution(ctx, c); err != nil {
		s.deleteObject(ctx, c.ObjectKey)
		return nil, fmt.Errorf("failed to save contribution: %w", err)
	}

	slog.InfoContext(ctx, "framer_contribution_submitted", "contribution_id", c.ID, "user_id", userID)
	return c, nil
}

// Mine returns the contributions of userID, newest first.
func (s *Service) Mine(ctx context.Context, userID string) ([]models.FramerContribution, error) {
	return s.store.ListContributionsByUser(ctx, userID)
}

// Contributions lists contributions with the given status, or all of them
// when status is empty.
func (s *Service) Contributions(ctx context.Context, status string) ([]models.FramerContribution, error) {
	st := models.ContributionStatus(strings.TrimSpace(status))
	if st != "" && !st.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.store.ListContributions(ctx, st)
}

// Approve publishes a pending contribution as a frame image.
func (s *Service) Approve(ctx context.Context, id, adminID string) (*models.Framer, error) {
	framer, err := s.store.ApproveContribution(ctx, id, adminID, s.now())
	if errors.Is(err, repository.ErrNotPending) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "framer_contribution_approved",
		"contribution_id", id, "framer_id", framer.ID, "admin_id", adminID)
	return framer, nil
}

// Reject declines a pending contribution.
func (s *Service) Reject(ctx context.Context, id, adminID string) (*models.FramerContribution, error) {
	c, err := s.store.RejectContribution(ctx, id, adminID, s.now())
	if errors.Is(err, repository.ErrNotPending) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "framer_contribution_rejected", "contribution_id", id, "admin_id", adminID)
	return c, nil
}

type storedImage struct {
	key         string
	url         string
	aspectRatio *float64
}

// storeImage validates an upload and writes it under a key made by keyFn.
func (s *Service) storeImage(ctx context.Context, up *Upload, keyFn func(time.Time, string) string) (*storedImage, error) {
	if s.objects == nil {
		return nil, storage.ErrNotConfigured
	}
	contentType, body, err := photos.Sniff(up.Body, up.Size)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(body, photos.MaxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	key := keyFn(s.now().UTC(), contentType)
	location, err := s.objects.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	return &storedImage{key: key, url: location, aspectRatio: AspectRatio(data)}, nil
}

// AspectRatio returns width divided by height of an encoded image, or nil
// when the format is unknown or the header is unreadable.
func AspectRatio(data []byte) *float64 {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Height == 0 {
		return nil
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	return &ratio
}

func (s *Service) deleteObject(ctx context.Context, key *string) {
	if s.objects == nil || key == nil || *key == "" {
		return
	}
	if err := s.objects.Delete(ctx, *key); err != nil {
		slog.ErrorContext(ctx, "object_delete_failed", "key", *key, "error", err)
	}
}

func parseLayout(s string) (models.Layout, error) {
	layout := models.Layout(strings.TrimSpace(s))
	if !layout.Valid() {
		return "", ErrInvalidLayout
	}
	return layout, nil
}

func parseImageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidImageURL
	}
	return raw, nil
}

func nameOr(ctx context.Context, name, fallbackID string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return i18n.T(ctx, fallbackID)
}
