package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/sakif/college-forum/internal/model"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleUser is the part of the OpenID Connect userinfo response we use.
type GoogleUser struct {
	Sub           string `json:"sub"` // stable account ID
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// GoogleProvider runs the OAuth 2.0 authorization code flow against Google.
//
// FLOW:
//  1. AuthURL redirects the browser to Google with a random state.
//  2. Google redirects back to the callback with a short-lived code.
//  3. Exchange trades the code for an access token, server to server.
//  4. The token is used once to read the userinfo endpoint.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a provider. callbackURL must match the
// authorized redirect URI registered in the Google Cloud console.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthURL returns the consent page URL. state is echoed back on the
// callback and must be checked against the cookie set before redirecting.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the Google account behind it.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, oauthToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo: %w", err)
	}
	if user.Sub == "" {
		return nil, fmt.Errorf("auth: Google returned an account without a subject")
	}
	return &user, nil
}

// Authenticate makes GoogleProvider an identity.Authenticator for OAuth
// codes. Unverified emails are dropped so they never match the
// administrator address.
func (p *GoogleProvider) Authenticate(ctx context.Context, code string) (model.Principal, error) {
	u, err := p.Exchange(ctx, code)
	if err != nil {
		return model.Principal{}, err
	}
	email := u.Email
	if !u.EmailVerified {
		email = ""
	}
	name := u.Name
	if name == "" {
		name = email
	}
	return model.Principal{
		ID:          u.Sub,
		DisplayName: name,
		Email:       email,
		AvatarURL:   u.Picture,
	}, nil
}
