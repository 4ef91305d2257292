package supabase

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// OAuthSignInURL builds the authorize URL for a federated provider. A PKCE
// verifier is generated and stored so ExchangeCodeForSession can complete
// the flow when the callback comes back with a code.
func (c *Client) OAuthSignInURL(ctx context.Context, provider, redirectTo string, scopes ...string) (string, error) {
	if provider == "" {
		return "", errors.New("[OAuthSignInURL] provider is required")
	}

	verifier := oauth2.GenerateVerifier()
	if err := c.storage.SetItem(ctx, c.codeVerifierKey(), verifier); err != nil {
		return "", errors.Wrap(err, "[OAuthSignInURL] store code verifier")
	}

	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	for _, s := range scopes {
		if q.Has("scopes") {
			q.Set("scopes", q.Get("scopes")+" "+s)
		} else {
			q.Set("scopes", s)
		}
	}
	q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	q.Set("code_challenge_method", "s256")

	return c.baseURL + authPath + "/authorize?" + q.Encode(), nil
}

// CodeVerifier returns the stored PKCE verifier, if any.
func (c *Client) CodeVerifier(ctx context.Context) (string, error) {
	return c.storage.GetItem(ctx, c.codeVerifierKey())
}

// SetCodeVerifier seeds the verifier for a flow started by another client
// instance (the portal keeps verifiers per browser flow).
func (c *Client) SetCodeVerifier(ctx context.Context, verifier string) error {
	return c.storage.SetItem(ctx, c.codeVerifierKey(), verifier)
}
