// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth

import (
	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// NewGoogle creates the Google provider.
func NewGoogle(clientID, clientSecret, redirectURL string, opts ...Option) Provider {
	b := newBase(models.ProviderGoogle, clientID, clientSecret, redirectURL)
	b.cfg.Endpoint = google.Endpoint
	b.cfg.Scopes = []string{"openid", "email", "profile"}
	b.userInfoURL = googleUserInfoURL
	b.decode = decodeGoogle
	b.apply(opts)
	return b
}

// decodeGoogle drops addresses Google has not verified, so they can never
// serve as a merge key.
func decodeGoogle(body []byte) (identity.Assertion, error) {
	var p googleProfile
	if err := decodeJSON(body, &p); err != nil {
		return identity.Assertion{}, err
	}

	a := identity.Assertion{
		ProviderID:  p.Sub,
		DisplayName: p.Name,
		AvatarURL:   p.Picture,
	}
	if p.EmailVerified {
		a.Email = p.Email
	}
	return a, nil
}
