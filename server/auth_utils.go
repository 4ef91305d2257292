package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

const (
	// loggedInSessionID is the cookie referencing a portal login session
	loggedInSessionID = "loggedInSessionId"
	// authFlowCookieName tracks a federated sign-in between start and callback
	authFlowCookieName = "auth_flow_id"

	authFlowCookieMaxAge = 10 * 60
	recoveryMaxAge       = 15 * time.Minute
)

var reconcileUnexpected = reconcile.MessageUnexpected.String()

func (s *Server) SetLoginSessionCookie(w http.ResponseWriter, sessionID string, r *http.Request, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     loggedInSessionID,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) SetAuthFlowCookie(w http.ResponseWriter, flowID string, r *http.Request, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     authFlowCookieName,
		Value:    flowID,
		Path:     RouteAuthCallback,
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// secureCookies is true when the portal is served over TLS, directly or
// behind a proxy, or its public URL is https.
func (s *Server) secureCookies(r *http.Request) bool {
	return getScheme(r) == "https" || strings.HasPrefix(s.config.GetBaseURL(), "https://")
}

// startLoginSession stores the session and sets its cookie.
func (s *Server) startLoginSession(w http.ResponseWriter, r *http.Request, session *supabase.Session, purpose loginsession.Purpose) error {
	now := s.nowTime()
	ls := loginsession.Session{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		Purpose:      purpose,
		CreatedAt:    now,
		ExpiresAt:    session.ExpiresAtTime(),
	}
	if session.User != nil {
		ls.UserID = session.User.ID
		ls.Email = session.User.Email
	}
	if purpose == loginsession.PurposeRecovery || ls.ExpiresAt.IsZero() {
		ls.ExpiresAt = now.Add(recoveryMaxAge)
	}

	sessionID := uuid.NewString()
	if err := s.loginSessions.Upsert(sessionID, ls); err != nil {
		return err
	}
	maxAge := int(ls.ExpiresAt.Sub(now).Seconds())
	s.SetLoginSessionCookie(w, sessionID, r, maxAge)
	return nil
}

// currentLoginSession returns the session referenced by the cookie.
func (s *Server) currentLoginSession(r *http.Request) (string, loginsession.Session, bool) {
	cookie, err := r.Cookie(loggedInSessionID)
	if err != nil || cookie.Value == "" {
		return "", loginsession.Session{}, false
	}
	ls, err := s.loginSessions.Get(cookie.Value)
	if err != nil {
		return "", loginsession.Session{}, false
	}
	return cookie.Value, ls, true
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects. code is a
// message id; the page renders the text.
func redirectWithError(w http.ResponseWriter, r *http.Request, path, code string) {
	fullPath := path + "?error=" + url.QueryEscape(code)

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// requestLanguage picks the page language from Accept-Language.
func requestLanguage(r *http.Request) language.Tag {
	return reconcile.MatchLanguage(reconcile.ParseAcceptLanguage(r.Header.Get("Accept-Language"))...)
}
