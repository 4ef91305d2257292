package server

import (
	"net/http"

	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
)

func (s *Server) initRoutes() error {
	pages, err := parsePages()
	if err != nil {
		return err
	}

	html := s.HTMLMiddleWare()
	signedIn := s.HTMLMiddleWare(s.RequireLoginSession(loginsession.PurposeSignedIn, RouteLogin, ""))
	recovering := s.HTMLMiddleWare(s.RequireLoginSession(loginsession.PurposeRecovery, RouteLogin, errRecoveryRequired))

	s.RegisterRouteHandler("GET "+RouteStatic, http.StripPrefix(RouteStatic, FileServerHandler()))
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(pages.index), signedIn...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(pages.login), html...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), html...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), html...))
	s.RegisterRouteHandler("GET "+RouteAuthGoogle, ChainMiddleware(s.GoogleStartHandler(), html...))

	// The fragment never reaches the server, so a GET without parameters
	// serves a page that posts the full URL back.
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(pages.relay), html...))
	s.RegisterRouteHandler("POST "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(pages.relay), html...))

	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPageHandler(pages.resetPassword), recovering...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordSubmissionHandler(), recovering...))

	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return nil
}
