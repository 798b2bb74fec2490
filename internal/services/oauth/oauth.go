// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package oauth implements the federated sign-in providers.
//
// Each provider runs the authorization code flow and turns the provider's
// profile into an identity.Assertion.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"codeberg.org/oliverandrich/photobooth/internal/config"
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"golang.org/x/oauth2"
)

// ErrUnknownProvider is returned for providers that are not configured.
var ErrUnknownProvider = errors.New("unknown or disabled oauth provider")

// Provider is a federated identity provider.
type Provider interface {
	Name() models.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (identity.Assertion, error)
}

// Option configures a provider.
type Option func(*base)

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(b *base) { b.cfg.Endpoint = ep }
}

// WithUserInfoURL overrides the profile endpoint.
func WithUserInfoURL(url string) Option {
	return func(b *base) { b.userInfoURL = url }
}

// WithHTTPClient sets the client used for token and profile requests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) { b.httpClient = c }
}

// base holds the plumbing shared by all providers.
type base struct {
	name        models.Provider
	cfg         oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	decode      func(body []byte) (identity.Assertion, error)
}

func (b *base) Name() models.Provider {
	return b.name
}

func (b *base) AuthCodeURL(state string) string {
	return b.cfg.AuthCodeURL(state)
}

// Exchange trades the authorization code for a token and fetches the profile.
func (b *base) Exchange(ctx context.Context, code string) (identity.Assertion, error) {
	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}

	token, err := b.cfg.Exchange(ctx, code)
	if err != nil {
		return identity.Assertion{}, fmt.Errorf("%s code exchange: %w", b.name, err)
	}

	body, err := b.fetchProfile(ctx, token)
	if err != nil {
		return identity.Assertion{}, err
	}

	a, err := b.decode(body)
	if err != nil {
		return identity.Assertion{}, fmt.Errorf("%s profile: %w", b.name, err)
	}
	a.Provider = b.name
	return a, nil
}

func (b *base) fetchProfile(ctx context.Context, token *oauth2.Token) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s profile request: %w", b.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s profile read: %w", b.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s profile request: status %d", b.name, resp.StatusCode)
	}
	return body, nil
}

func newBase(name models.Provider, clientID, clientSecret, redirectURL string) *base {
	return &base{
		name: name,
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
		},
	}
}

func (b *base) apply(opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding profile: %w", err)
	}
	return nil
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[models.Provider]Provider
}

// NewRegistry creates providers for every client configured in cfg. Callback
// URLs are derived from baseURL.
func NewRegistry(cfg config.OAuthConfig, baseURL string, opts ...Option) *Registry {
	r := &Registry{providers: make(map[models.Provider]Provider)}
	if cfg.Google.Enabled() {
		r.Register(NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret,
			CallbackURL(baseURL, models.ProviderGoogle), opts...))
	}
	if cfg.Facebook.Enabled() {
		r.Register(NewFacebook(cfg.Facebook.ClientID, cfg.Facebook.ClientSecret,
			CallbackURL(baseURL, models.ProviderFacebook), opts...))
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider called name.
func (r *Registry) Get(name string) (Provider, error) {
	provider, ok := models.ParseProvider(name)
	if !ok {
		return nil, ErrUnknownProvider
	}
	p, ok := r.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Len returns the number of configured providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

// CallbackURL returns the redirect URL registered with the provider.
func CallbackURL(baseURL string, p models.Provider) string {
	return baseURL + "/auth/" + string(p) + "/callback"
}
