package clients

import (
	"golang.org/x/oauth2"
)

// BearerTokenSource returns a token source that always yields apiKey as a
// bearer token. It never refreshes.
func BearerTokenSource(apiKey string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: apiKey,
		TokenType:   "Bearer",
	})
}
