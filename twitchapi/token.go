package twitchapi

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultTokenURL = "https://id.twitch.tv/oauth2/token"

// NewAppTokenSource returns a caching client-credentials token source for the
// Twitch app token. Twitch expects the credentials in the form body, not basic
// auth. tokenURL and hc may be empty/nil for the defaults; tests point them at
// a mock server.
func NewAppTokenSource(clientID, clientSecret, tokenURL string, hc *http.Client) oauth2.TokenSource {
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.Background()
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}
	return cfg.TokenSource(ctx)
}
