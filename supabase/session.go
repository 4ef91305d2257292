package supabase

import (
	"time"
)

// AuthChangeEvent names the notifications emitted through OnAuthStateChange.
type AuthChangeEvent string

const (
	EventInitialSession   AuthChangeEvent = "INITIAL_SESSION"
	EventSignedIn         AuthChangeEvent = "SIGNED_IN"
	EventSignedOut        AuthChangeEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthChangeEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthChangeEvent = "USER_UPDATED"
	EventPasswordRecovery AuthChangeEvent = "PASSWORD_RECOVERY"
)

// AuthStateChange is one notification. Session is nil for SIGNED_OUT and
// for an INITIAL_SESSION with nobody signed in.
type AuthStateChange struct {
	Event   AuthChangeEvent
	Session *Session
}

// User is the subset of the auth server's user object the app reads.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
}

// Provider returns the sign-in provider recorded in app_metadata ("email", "google", ...).
func (u *User) Provider() string {
	if u == nil {
		return ""
	}
	p, _ := u.AppMetadata["provider"].(string)
	return p
}

// Session is the token pair plus the user it belongs to, in the JSON shape
// the auth server returns and the client persists.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// HasUser reports whether the session identifies a user.
func (s *Session) HasUser() bool {
	return s != nil && s.User != nil && s.User.ID != ""
}

func (s *Session) ExpiresAtTime() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// ExpiresWithin reports whether the access token expires before now+margin.
// A session without an expiry never expires.
func (s *Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	exp := s.ExpiresAtTime()
	if exp.IsZero() {
		return false
	}
	return !now.Add(margin).Before(exp)
}
