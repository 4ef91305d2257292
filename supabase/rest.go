package supabase

import (
	"context"
	"net/http"
	"net/url"

	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
	"github.com/pkg/errors"
)

// HasChildren reports whether userID has registered at least one child.
// The query runs as the signed-in user so row level security applies.
func (c *Client) HasChildren(ctx context.Context, userID string) (bool, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return false, errors.Wrap(err, "[HasChildren]")
	}
	if s == nil {
		return false, apperrors.ErrNoSession
	}

	q := url.Values{}
	q.Set("select", "id")
	q.Set("user_id", "eq."+userID)
	q.Set("limit", "1")

	var rows []struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, restPath+"/children", q, s.AccessToken, nil, &rows); err != nil {
		return false, errors.Wrap(err, "[HasChildren]")
	}
	return len(rows) > 0, nil
}
