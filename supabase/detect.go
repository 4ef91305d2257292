package supabase

import (
	"context"

	"github.com/desert5047-spec/test-keper-sub000/deeplink"
	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
	"github.com/pkg/errors"
)

// DetectSessionInURL performs the automatic session detection a browser
// runtime does on page load: a code is exchanged, a token pair is installed.
// Listeners learn the outcome through SIGNED_IN. A URL with neither is a no-op.
func (c *Client) DetectSessionInURL(ctx context.Context, rawURL string) error {
	p := deeplink.Extract(rawURL)
	switch {
	case p.HasError():
		return errors.Wrapf(apperrors.ErrLinkRejected, "%s: %s", p.ErrorCode, p.ErrorDescription)
	case p.HasCode():
		_, err := c.ExchangeCodeForSession(ctx, p.Code)
		return err
	case p.HasTokens():
		_, err := c.SetSession(ctx, p.AccessToken, p.RefreshToken)
		return err
	}
	return nil
}
