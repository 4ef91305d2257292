package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
	"github.com/rs/zerolog/log"
)

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler(tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ls, ok := s.currentLoginSession(r); ok && ls.Purpose == loginsession.PurposeSignedIn {
			http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
			return
		}

		data := newPageData(r)
		data.Email = r.URL.Query().Get("email")
		renderPage(w, tmpl, data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.PostFormValue("email"))
		password := r.PostFormValue("password")
		if email == "" || password == "" {
			redirectWithError(w, r, RouteLogin, errMissingFields)
			return
		}

		backend, err := s.newBackend()
		if err != nil {
			log.Err(err).Msg("Login: failed to create auth client")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}

		session, err := backend.SignInWithPassword(r.Context(), email, password)
		if err != nil || !session.HasUser() {
			log.Debug().Err(err).Msg("Login: sign in rejected")
			redirectWithError(w, r, RouteLogin, errInvalidCredentials)
			return
		}

		if err := s.startLoginSession(w, r, session, loginsession.PurposeSignedIn); err != nil {
			log.Err(err).Msg("Login: failed to store login session")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}
		redirectSuccess(w, r, RouteIndex)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ls, ok := s.currentLoginSession(r)
		s.SetLoginSessionCookie(w, "", r, -1)
		if !ok {
			redirectSuccess(w, r, RouteLogin)
			return
		}

		if err := s.loginSessions.Delete(sessionID); err != nil {
			log.Err(err).Msg("Logout: failed to delete login session")
		}
		s.revoke(r, ls)
		redirectSuccess(w, r, RouteLogin)
	}
}

// revoke ends the session server-side. Failures are only logged.
func (s *Server) revoke(r *http.Request, ls loginsession.Session) {
	backend, err := s.newBackend()
	if err != nil {
		log.Debug().Err(err).Msg("revoke: no auth client")
		return
	}
	if _, err := backend.SetSession(r.Context(), ls.AccessToken, ls.RefreshToken); err != nil {
		log.Debug().Err(err).Msg("revoke: session already invalid")
		return
	}
	if err := backend.SignOut(r.Context()); err != nil {
		log.Debug().Err(err).Msg("revoke: sign out failed")
	}
}
