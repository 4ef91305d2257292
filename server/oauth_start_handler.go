package server

import (
	"net/http"

	"github.com/desert5047-spec/test-keper-sub000/lastprovider"
	"github.com/desert5047-spec/test-keper-sub000/server/authflowrepo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GoogleStartHandler begins a federated sign-in and redirects to the provider.
// The PKCE verifier is kept server-side under the flow cookie until the callback.
func (s *Server) GoogleStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backend, err := s.newBackend()
		if err != nil {
			log.Err(err).Msg("GoogleStart: failed to create auth client")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}

		returnURL := s.callbackURL(r)
		provider := string(lastprovider.ProviderGoogle)
		authURL, err := backend.OAuthSignInURL(r.Context(), provider, returnURL)
		if err != nil {
			log.Err(err).Msg("GoogleStart: failed to build sign-in URL")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}
		verifier, err := backend.CodeVerifier(r.Context())
		if err != nil {
			log.Err(err).Msg("GoogleStart: no code verifier")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}

		flowID := uuid.NewString()
		err = s.authFlows.Upsert(flowID, &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			Provider:     provider,
			ReturnURL:    returnURL,
			CreatedAt:    s.nowTime(),
		})
		if err != nil {
			log.Err(err).Msg("GoogleStart: failed to store auth flow")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}

		s.SetAuthFlowCookie(w, flowID, r, authFlowCookieMaxAge)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func (s *Server) callbackURL(r *http.Request) string {
	if base := s.config.GetBaseURL(); base != "" {
		return base + RouteAuthCallback
	}
	return getScheme(r) + "://" + r.Host + RouteAuthCallback
}
