// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/photobooth/internal/database"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewFileTestDB creates a file-backed SQLite database in a temporary
// directory. Unlike NewTestDB its pool holds several connections.
func NewFileTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestUser creates a password user. Verified users get email_verified set.
func NewTestUser(t *testing.T, repo *repository.Repository, email, password string, verified bool) *models.User {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user, err := repo.CreatePasswordUser(ctx, email, string(hash), "")
	require.NoError(t, err)

	if verified {
		require.NoError(t, repo.MarkEmailVerified(ctx, email))
		user, err = repo.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
	}
	return user
}

// NewTestAdmin creates a verified password user with the admin role.
func NewTestAdmin(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	user := NewTestUser(t, repo, email, "admin-password", true)
	require.NoError(t, repo.UpdateUserRole(context.Background(), user.ID, models.RoleAdmin))
	user.Role = models.RoleAdmin
	return user
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// SentMessage is one notification captured by Notifier.
type SentMessage struct {
	To    string
	Code  string
	Link  string
	Token string
}

// Notifier records verification notifications instead of sending them.
type Notifier struct {
	mu       sync.Mutex
	messages []SentMessage
	// Err, when set, is returned from every send.
	Err error
}

// SendVerificationCode records a code notification.
func (n *Notifier) SendVerificationCode(_ context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, SentMessage{To: to, Code: code})
	return n.Err
}

// SendVerificationLink records a link notification and extracts its token.
func (n *Notifier) SendVerificationLink(_ context.Context, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	token := ""
	if i := len(link) - 64; i >= 0 {
		token = link[i:]
	}
	n.messages = append(n.messages, SentMessage{To: to, Link: link, Token: token})
	return n.Err
}

// Messages returns a copy of the recorded notifications.
func (n *Notifier) Messages() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.messages...)
}

// LastCode returns the most recent code sent to the address.
func (n *Notifier) LastCode(to string) string {
	msgs := n.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To == to && msgs[i].Code != "" {
			return msgs[i].Code
		}
	}
	return ""
}

// LastLinkToken returns the token of the most recent link sent to the address.
func (n *Notifier) LastLinkToken(to string) string {
	msgs := n.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To == to && msgs[i].Token != "" {
			return msgs[i].Token
		}
	}
	return ""
}

// ObjectStore keeps objects in memory.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	// PutErr, when set, is returned from Put.
	PutErr error
}

// NewObjectStore creates an empty ObjectStore.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

// Put stores body under key and returns a fake public URL.
func (s *ObjectStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if s.PutErr != nil {
		return "", s.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

// Delete removes key.
func (s *ObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return errors.New("no such key")
	}
	delete(s.objects, key)
	return nil
}

// Object returns the stored bytes of key.
func (s *ObjectStore) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// PNG is a minimal PNG file header, enough for content sniffing.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
