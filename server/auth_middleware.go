package server

import (
	"context"
	"net/http"

	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyLoginSession stores the loginsession.Session of the request
	ContextKeyLoginSession ContextKey = "login_session"
	// ContextKeyLoginSessionID stores the id the session is kept under
	ContextKeyLoginSessionID ContextKey = "login_session_id"
)

// RequireLoginSession is middleware for page routes that need a portal
// session of the given purpose. Without one the browser goes to onMissing
// with errCode.
func (s *Server) RequireLoginSession(purpose loginsession.Purpose, onMissing, errCode string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sessionID, ls, ok := s.currentLoginSession(r)
			if !ok || ls.Purpose != purpose {
				if errCode == "" {
					http.Redirect(w, r, onMissing, http.StatusSeeOther)
					return
				}
				redirectWithError(w, r, onMissing, errCode)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyLoginSession, ls)
			ctx = context.WithValue(ctx, ContextKeyLoginSessionID, sessionID)
			next(w, r.WithContext(ctx))
		}
	}
}

// LoginSessionFromContext returns the session RequireLoginSession stored.
func LoginSessionFromContext(ctx context.Context) (string, loginsession.Session, bool) {
	ls, ok := ctx.Value(ContextKeyLoginSession).(loginsession.Session)
	if !ok {
		return "", loginsession.Session{}, false
	}
	sessionID, _ := ctx.Value(ContextKeyLoginSessionID).(string)
	return sessionID, ls, true
}
