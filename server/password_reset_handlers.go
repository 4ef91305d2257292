package server

import (
	"html/template"
	"net/http"

	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
	"github.com/rs/zerolog/log"
)

func (s *Server) ResetPasswordPageHandler(tmpl *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := newPageData(r)
		data.Action = RouteResetPassword
		renderPage(w, tmpl, data)
	}
}

// ResetPasswordSubmissionHandler sets the new password with the recovery
// tokens and converts the recovery session into a normal one.
func (s *Server) ResetPasswordSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ls, _ := LoginSessionFromContext(r.Context())
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		password := r.PostFormValue("password")
		if len([]rune(password)) < minPasswordLength {
			redirectWithError(w, r, RouteResetPassword, errPasswordTooShort)
			return
		}
		if password != r.PostFormValue("confirm_password") {
			redirectWithError(w, r, RouteResetPassword, errPasswordMismatch)
			return
		}

		backend, err := s.newBackend()
		if err != nil {
			log.Err(err).Msg("ResetPassword: failed to create auth client")
			redirectWithError(w, r, RouteResetPassword, reconcileUnexpected)
			return
		}
		if _, err := backend.SetSession(r.Context(), ls.AccessToken, ls.RefreshToken); err != nil {
			log.Debug().Err(err).Msg("ResetPassword: recovery tokens rejected")
			_ = s.loginSessions.Delete(sessionID)
			s.SetLoginSessionCookie(w, "", r, -1)
			redirectWithError(w, r, RouteLogin, reconcile.MessageLinkExpired.String())
			return
		}
		if err := backend.UpdatePassword(r.Context(), password); err != nil {
			log.Err(err).Msg("ResetPassword: update failed")
			redirectWithError(w, r, RouteResetPassword, reconcile.MessageAuthFailed.String())
			return
		}

		if err := s.loginSessions.Delete(sessionID); err != nil {
			log.Debug().Err(err).Msg("ResetPassword: failed to delete recovery session")
		}
		current, err := backend.GetSession(r.Context())
		if err != nil || !current.HasUser() {
			s.SetLoginSessionCookie(w, "", r, -1)
			redirectSuccess(w, r, RouteLogin)
			return
		}
		if err := s.startLoginSession(w, r, current, loginsession.PurposeSignedIn); err != nil {
			log.Err(err).Msg("ResetPassword: failed to store login session")
			redirectSuccess(w, r, RouteLogin)
			return
		}
		redirectSuccess(w, r, RouteIndex)
	}
}
