// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package photos manages uploaded images and their objects in storage.
package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"codeberg.org/oliverandrich/photobooth/internal/services/storage"
	"github.com/google/uuid"
)

// MaxSize is the largest accepted upload in bytes.
const MaxSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("invalid file type, allowed: image/jpeg, image/png, image/webp, image/gif")
	ErrTooLarge        = errors.New("file exceeds the 10 MB limit")
	ErrEmpty           = errors.New("file is empty")
	ErrForbidden       = errors.New("not allowed to modify this photo")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Store is the photo persistence the service needs.
type Store interface {
	CreatePhoto(ctx context.Context, p *models.Photo) error
	GetPhotoByID(ctx context.Context, id string) (*models.Photo, error)
	ListPhotosByUser(ctx context.Context, userID string) ([]repository.PhotoWithOwner, error)
	DeletePhoto(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}

// Service uploads and removes photos. objects may be nil, in which case
// uploads fail with storage.ErrNotConfigured and deletions only touch rows.
type Service struct {
	store   Store
	objects storage.ObjectStore
	now     func() time.Time
}

// NewService creates a Service.
func NewService(store Store, objects storage.ObjectStore) *Service {
	return &Service{store: store, objects: objects, now: time.Now}
}

// Enabled reports whether uploads are possible.
func (s *Service) Enabled() bool {
	return s.objects != nil
}

// Upload sniffs the content type of body, stores it and records the photo
// for userID.
func (s *Service) Upload(ctx context.Context, userID string, body io.Reader, size int64) (*models.Photo, error) {
	if s.objects == nil {
		return nil, storage.ErrNotConfigured
	}
	contentType, body, err := Sniff(body, size)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := storage.PhotoKey(now, contentType)
	url, err := s.objects.Put(ctx, key, contentType, body, size)
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	photo := &models.Photo{
		ID:          uuid.NewString(),
		UserID:      &userID,
		URL:         url,
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   size,
		CreatedAt:   now,
	}
	if err := s.store.CreatePhoto(ctx, photo); err != nil {
		s.deleteObject(ctx, key)
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}

	slog.InfoContext(ctx, "photo_uploaded", "photo_id", photo.ID, "user_id", userID, "bytes", size)
	return photo, nil
}

// Sniff checks the size of an upload and detects its image type from the
// leading bytes. The returned reader yields the complete body again.
func Sniff(body io.Reader, size int64) (contentType string, r io.Reader, err error) {
	if size > MaxSize {
		return "", nil, ErrTooLarge
	}
	if size <= 0 {
		return "", nil, ErrEmpty
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	contentType = http.DetectContentType(head)
	if !allowedTypes[contentType] {
		return "", nil, ErrUnsupportedType
	}
	return contentType, io.MultiReader(bytes.NewReader(head), body), nil
}

// CanModify reports whether user may delete photo.
func CanModify(user *models.User, photo *models.Photo) bool {
	return user != nil && (user.IsAdmin() || photo.OwnedBy(user.ID))
}

// Delete removes a photo by ID on behalf of user, with its share tokens and
// its object.
func (s *Service) Delete(ctx context.Context, user *models.User, id string) error {
	photo, err := s.store.GetPhotoByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanModify(user, photo) {
		return ErrForbidden
	}
	return s.remove(ctx, photo)
}

func (s *Service) remove(ctx context.Context, photo *models.Photo) error {
	if err := s.store.DeletePhoto(ctx, photo.ID); err != nil {
		return err
	}
	s.deleteObject(ctx, photo.ObjectKey)
	slog.InfoContext(ctx, "photo_deleted", "photo_id", photo.ID)
	return nil
}

// RemoveUser deletes every photo of userID and then the account itself. It
// returns the number of photos removed.
func (s *Service) RemoveUser(ctx context.Context, userID string) (int, error) {
	owned, err := s.store.ListPhotosByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list photos: %w", err)
	}
	for i := range owned {
		if err := s.remove(ctx, &owned[i].Photo); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return i, err
		}
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return len(owned), err
	}

	slog.InfoContext(ctx, "user_removed", "user_id", userID, "photos", len(owned))
	return len(owned), nil
}

// deleteObject removes an object, logging failures.
func (s *Service) deleteObject(ctx context.Context, key string) {
	if s.objects == nil || key == "" {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		slog.ErrorContext(ctx, "object_delete_failed", "key", key, "error", err)
	}
}
