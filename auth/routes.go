package auth

import (
	"net/url"

	"github.com/desert5047-spec/test-keper-sub000/reconcile"
)

// App screen paths
const (
	RouteLogin         = "/(auth)/login"
	RouteResetPassword = "/(auth)/reset-password"
	RouteOnboarding    = "/onboarding"
	RouteRegisterChild = "/register-child"
	RouteMainTabs      = "/(tabs)"
)

// Route is a navigation target with the parameters the screen needs.
type Route struct {
	Path string
	// Message is the login banner
	Message      reconcile.MessageID
	AccessToken  string
	RefreshToken string
}

// String renders the route as an app path. Tokens are left out.
func (r Route) String() string {
	if r.Message == reconcile.MessageNone {
		return r.Path
	}
	return r.Path + "?" + url.Values{"error": {r.Message.String()}}.Encode()
}
