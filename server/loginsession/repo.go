package loginsession

import "time"

type Purpose string

const (
	// PurposeSignedIn is a normal portal session
	PurposeSignedIn Purpose = "signed_in"
	// PurposeRecovery only allows setting a new password
	PurposeRecovery Purpose = "recovery"
)

type Session struct {
	UserID string
	Email  string

	AccessToken  string
	RefreshToken string

	Purpose   Purpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past ExpiresAt. A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
}
