package server

import (
	"context"
	"html/template"
	"net/http"
	"net/url"

	"github.com/desert5047-spec/test-keper-sub000/deeplink"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/rs/zerolog/log"
)

// callbackField carries the full callback URL, fragment included, from the relay page.
const callbackField = "callback_url"

// CallbackHandler reconciles a web auth callback. A GET whose query carries
// nothing the reconciler can act on is answered with the relay page, which
// posts location.href back so tokens in the fragment reach the server.
func (s *Server) CallbackHandler(relay *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw string
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form data", http.StatusBadRequest)
				return
			}
			raw = r.PostFormValue(callbackField)
			u, err := url.Parse(raw)
			if err != nil || u.Path != RouteAuthCallback {
				log.Debug().Str("shape", deeplink.ShapeOf(raw).String()).Msg("Callback: rejected relayed URL")
				redirectWithError(w, r, RouteLogin, reconcile.MessageAuthFailed.String())
				return
			}
		} else {
			raw = requestURL(r)
			if deeplink.Extract(raw).Empty() {
				data := newPageData(r)
				data.Action = RouteAuthCallback
				renderPage(w, relay, data)
				return
			}
		}

		s.reconcileCallback(w, r, raw)
	}
}

func (s *Server) reconcileCallback(w http.ResponseWriter, r *http.Request, raw string) {
	ctx := r.Context()
	backend, err := s.newBackend()
	if err != nil {
		log.Err(err).Msg("Callback: failed to create auth client")
		redirectWithError(w, r, RouteLogin, reconcileUnexpected)
		return
	}
	s.restoreAuthFlow(w, r, backend)

	// In a browser the client library consumes a code URL on its own; the
	// reconciler waits for the resulting sign-in event. A failed detection
	// ends that wait instead of letting it run out.
	reconcileCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	if deeplink.Extract(raw).HasCode() {
		go func() {
			detectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deadlines.ExchangeCode)
			defer cancel()
			if err := backend.DetectSessionInURL(detectCtx, raw); err != nil {
				log.Debug().Err(err).Msg("Callback: session detection failed")
				stop(err)
			}
		}()
	}

	out := reconcile.NewReconciler(backend, reconcile.PlatformWeb, reconcile.WithDeadlines(s.deadlines)).Reconcile(reconcileCtx, raw)
	d := out.Decision

	switch d.Target {
	case reconcile.TargetPasswordReset:
		session := &supabase.Session{AccessToken: d.AccessToken, RefreshToken: d.RefreshToken}
		if current, err := backend.GetSession(ctx); err == nil && current != nil {
			session.User = current.User
		}
		if err := s.startLoginSession(w, r, session, loginsession.PurposeRecovery); err != nil {
			log.Err(err).Msg("Callback: failed to store recovery session")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}
		redirectSuccess(w, r, RouteResetPassword)

	case reconcile.TargetMainApp:
		current, err := backend.GetSession(ctx)
		if err != nil || !current.HasUser() {
			log.Debug().Err(err).Str("reconcile_id", out.ID).Msg("Callback: session gone after reconcile")
			redirectWithError(w, r, RouteLogin, reconcile.MessageAuthFailed.String())
			return
		}
		if err := s.startLoginSession(w, r, current, loginsession.PurposeSignedIn); err != nil {
			log.Err(err).Msg("Callback: failed to store login session")
			redirectWithError(w, r, RouteLogin, reconcileUnexpected)
			return
		}
		redirectSuccess(w, r, RouteIndex)

	default:
		msg := d.Message
		if msg == reconcile.MessageNone {
			msg = reconcile.MessageAuthFailed
		}
		redirectWithError(w, r, RouteLogin, msg.String())
	}
}

// restoreAuthFlow hands the stored PKCE verifier to backend and forgets the flow.
func (s *Server) restoreAuthFlow(w http.ResponseWriter, r *http.Request, backend Backend) {
	cookie, err := r.Cookie(authFlowCookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	s.SetAuthFlowCookie(w, "", r, -1)

	flow, err := s.authFlows.Get(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("Callback: unknown auth flow")
		return
	}
	if err := s.authFlows.Delete(cookie.Value); err != nil {
		log.Debug().Err(err).Msg("Callback: failed to delete auth flow")
	}
	if err := backend.SetCodeVerifier(r.Context(), flow.CodeVerifier); err != nil {
		log.Err(err).Msg("Callback: failed to restore code verifier")
	}
}
