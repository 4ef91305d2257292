package server

// Route path constants
const (
	RouteIndex = "/"

	// Sign-in
	RouteLogin        = "/login"
	RouteAuthLogin    = "/auth/login"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthGoogle   = "/auth/google"
	RouteAuthCallback = "/auth/callback"

	// Password recovery
	RouteResetPassword = "/auth/reset-password"

	RouteHealth = "/healthz"
	RouteStatic = "/static/"
)
