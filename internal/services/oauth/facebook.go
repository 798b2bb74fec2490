// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package oauth

import (
	"strings"

	"codeberg.org/oliverandrich/photobooth/internal/models"
	"codeberg.org/oliverandrich/photobooth/internal/services/identity"
	"golang.org/x/oauth2/facebook"
)

const facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,first_name,last_name,email,picture.type(large)"

type facebookProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Picture   struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// NewFacebook creates the Facebook provider.
func NewFacebook(clientID, clientSecret, redirectURL string, opts ...Option) Provider {
	b := newBase(models.ProviderFacebook, clientID, clientSecret, redirectURL)
	b.cfg.Endpoint = facebook.Endpoint
	b.cfg.Scopes = []string{"email", "public_profile"}
	b.userInfoURL = facebookUserInfoURL
	b.decode = decodeFacebook
	b.apply(opts)
	return b
}

func decodeFacebook(body []byte) (identity.Assertion, error) {
	var p facebookProfile
	if err := decodeJSON(body, &p); err != nil {
		return identity.Assertion{}, err
	}

	name := p.Name
	if name == "" {
		name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	return identity.Assertion{
		ProviderID:  p.ID,
		Email:       p.Email,
		DisplayName: name,
		AvatarURL:   p.Picture.Data.URL,
	}, nil
}
