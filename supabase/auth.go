package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/credstore"
	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// accessClaims are the access token claims the client reads.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// GetSession returns the current session, loading it from storage on first
// use and refreshing it when it is about to expire. No session is (nil, nil).
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	s, err := c.currentSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.ExpiresWithin(c.nowTime(), refreshMargin) {
		return s, nil
	}

	refreshed, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			// The refresh token was rejected; the stored session is dead
			c.removeSession(ctx)
			c.emit(AuthStateChange{Event: EventSignedOut})
		}
		return nil, errors.Wrap(err, "[GetSession] refresh")
	}
	return refreshed, nil
}

// SetSession installs a session from a token pair delivered in a callback.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "[SetSession] access and refresh tokens are required")
	}

	claims, err := c.decodeAccessToken(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[SetSession]")
	}

	now := c.nowTime()
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		s, err := c.refresh(ctx, refreshToken)
		if err != nil {
			return nil, errors.Wrap(err, "[SetSession] refresh expired token")
		}
		c.emit(AuthStateChange{Event: EventSignedIn, Session: s})
		return s, nil
	}

	user, err := c.GetUser(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[SetSession] get user")
	}

	s := &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User:         user,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Unix()
		s.ExpiresIn = int64(claims.ExpiresAt.Sub(now) / time.Second)
	}
	if err := c.saveSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "[SetSession]")
	}
	c.emit(AuthStateChange{Event: EventSignedIn, Session: s})
	return s, nil
}

// ExchangeCodeForSession trades a PKCE authorization code for a session,
// using the verifier stored when the sign-in URL was created.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*Session, error) {
	if code == "" {
		return nil, errors.New("[ExchangeCodeForSession] code is required")
	}
	verifier, err := c.storage.GetItem(ctx, c.codeVerifierKey())
	if err != nil && !errors.Is(err, credstore.ErrNotFound) {
		return nil, errors.Wrap(err, "[ExchangeCodeForSession] read code verifier")
	}

	var s Session
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := c.do(ctx, http.MethodPost, authPath+"/token", url.Values{"grant_type": {"pkce"}}, "", body, &s); err != nil {
		return nil, errors.Wrap(err, "[ExchangeCodeForSession]")
	}
	if err := c.storage.RemoveItem(ctx, c.codeVerifierKey()); err != nil {
		log.Debug().Err(err).Msg("failed to remove code verifier")
	}

	c.stampExpiry(&s)
	if err := c.saveSession(ctx, &s); err != nil {
		return nil, errors.Wrap(err, "[ExchangeCodeForSession]")
	}
	c.emit(AuthStateChange{Event: EventSignedIn, Session: &s})
	return &s, nil
}

// SignInWithPassword signs in with email credentials.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, authPath+"/token", url.Values{"grant_type": {"password"}}, "", body, &s); err != nil {
		return nil, errors.Wrap(err, "[SignInWithPassword]")
	}
	c.stampExpiry(&s)
	if err := c.saveSession(ctx, &s); err != nil {
		return nil, errors.Wrap(err, "[SignInWithPassword]")
	}
	c.emit(AuthStateChange{Event: EventSignedIn, Session: &s})
	return &s, nil
}

// GetUser loads the user an access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, authPath+"/user", nil, accessToken, nil, &u); err != nil {
		return nil, errors.Wrap(err, "[GetUser]")
	}
	if u.ID == "" {
		return nil, apperrors.ErrNoUser
	}
	return &u, nil
}

// UpdatePassword sets a new password for the signed-in user.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	s, err := c.GetSession(ctx)
	if err != nil {
		return errors.Wrap(err, "[UpdatePassword]")
	}
	if s == nil {
		return apperrors.ErrNoSession
	}

	var u User
	if err := c.do(ctx, http.MethodPut, authPath+"/user", nil, s.AccessToken, map[string]string{"password": newPassword}, &u); err != nil {
		return errors.Wrap(err, "[UpdatePassword]")
	}
	if u.ID != "" {
		s.User = &u
		if err := c.saveSession(ctx, s); err != nil {
			return errors.Wrap(err, "[UpdatePassword]")
		}
	}
	c.emit(AuthStateChange{Event: EventUserUpdated, Session: s})
	return nil
}

// SignOut revokes the session server-side (best effort) and forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	s, _ := c.currentSession(ctx)
	if s != nil {
		if err := c.do(ctx, http.MethodPost, authPath+"/logout", nil, s.AccessToken, nil, nil); err != nil {
			log.Debug().Err(err).Msg("server-side logout failed")
		}
	}
	c.removeSession(ctx)
	c.emit(AuthStateChange{Event: EventSignedOut})
	return nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrSessionExpired
	}
	v, err, _ := c.refreshes.Do(refreshToken, func() (any, error) {
		var s Session
		body := map[string]string{"refresh_token": refreshToken}
		if err := c.do(ctx, http.MethodPost, authPath+"/token", url.Values{"grant_type": {"refresh_token"}}, "", body, &s); err != nil {
			return nil, err
		}
		c.stampExpiry(&s)
		if err := c.saveSession(ctx, &s); err != nil {
			return nil, err
		}
		c.emit(AuthStateChange{Event: EventTokenRefreshed, Session: &s})
		return &s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// decodeAccessToken reads the claims, verifying the signature when a key set is configured.
func (c *Client) decodeAccessToken(ctx context.Context, token string) (*accessClaims, error) {
	if c.keySet != nil {
		if _, err := c.keySet.VerifySignature(ctx, token); err != nil {
			return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
		}
	}
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	return &claims, nil
}

func (c *Client) stampExpiry(s *Session) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.nowTime().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
}

func (c *Client) currentSession(ctx context.Context) (*Session, error) {
	c.mu.RLock()
	s, loaded := c.current, c.loaded
	c.mu.RUnlock()
	if loaded {
		return s, nil
	}

	raw, err := c.storage.GetItem(ctx, c.storageKey)
	if errors.Is(err, credstore.ErrNotFound) {
		c.mu.Lock()
		c.loaded = true
		s = c.current
		c.mu.Unlock()
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}

	var stored Session
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		log.Warn().Msg("discarding unreadable stored session")
		c.removeSession(ctx)
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.current = &stored
		c.loaded = true
	}
	return c.current, nil
}

func (c *Client) saveSession(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := c.storage.SetItem(ctx, c.storageKey, string(raw)); err != nil {
		return errors.Wrap(err, "persist session")
	}
	c.mu.Lock()
	c.current = s
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Client) removeSession(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.loaded = true
	c.mu.Unlock()
	if err := c.storage.RemoveItem(ctx, c.storageKey); err != nil {
		log.Debug().Err(err).Msg("failed to remove stored session")
	}
}
