package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrGoogleRejected means Google did not accept the access token.
var ErrGoogleRejected = errors.New("auth: google rejected the access token")

// GoogleUser is the subset of the OpenID userinfo document we keep.
type GoogleUser struct {
	Sub           string `json:"sub"` // stable account id
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleVerifier turns a client-supplied Google access token into a
// verified identity by calling Google's userinfo endpoint with it.
type GoogleVerifier struct {
	userInfoURL string
	base        *http.Client
}

// NewGoogleVerifier builds a verifier. base may be nil.
func NewGoogleVerifier(userInfoURL string, base *http.Client) *GoogleVerifier {
	if base == nil {
		base = http.DefaultClient
	}
	return &GoogleVerifier{userInfoURL: userInfoURL, base: base}
}

// Verify fetches the profile behind accessToken.
func (g *GoogleVerifier) Verify(ctx context.Context, accessToken string) (*GoogleUser, error) {
	if accessToken == "" {
		return nil, ErrGoogleRejected
	}

	// oauth2.NewClient attaches the bearer header for us; the base client
	// is threaded through the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrGoogleRejected
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: google userinfo returned status %d", resp.StatusCode)
	}

	var u GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding google userinfo: %w", err)
	}
	if u.Sub == "" {
		return nil, fmt.Errorf("%w: no subject in userinfo", ErrGoogleRejected)
	}
	return &u, nil
}
