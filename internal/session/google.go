package session

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleDeviceFlow gets a Google access token with the OAuth 2.0 device
// authorization grant, which suits a terminal: the user opens a URL on any
// device and types a short code.
type GoogleDeviceFlow struct {
	config *oauth2.Config
	prompt func(verificationURL, userCode string)
}

// NewGoogleDeviceFlow builds a device flow for the given OAuth client.
// prompt is called once with the URL and code to show the user.
func NewGoogleDeviceFlow(clientID, clientSecret string, prompt func(verificationURL, userCode string)) *GoogleDeviceFlow {
	return &GoogleDeviceFlow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		prompt: prompt,
	}
}

// AccessToken blocks until the user approves, denies, or ctx ends.
func (f *GoogleDeviceFlow) AccessToken(ctx context.Context) (string, error) {
	da, err := f.config.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("requesting device code: %w", err)
	}

	uri := da.VerificationURIComplete
	if uri == "" {
		uri = da.VerificationURI
	}
	f.prompt(uri, da.UserCode)

	tok, err := f.config.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", fmt.Errorf("waiting for approval: %w", err)
	}
	return tok.AccessToken, nil
}
