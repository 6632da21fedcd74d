package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth2 Routes
	RouteOAuth2Authorize = "/oauth2/authorize"
	RouteOAuth2Token     = "/oauth2/token"
	RouteOAuth2TokenInfo = "/oauth2/tokeninfo"

	// Account Routes - Password Management
	RouteForgotPassword = "/account/forgot-password"
	RouteResetPassword  = "/account/reset-password"

	// Account Routes - Signup & Email Verification
	RouteRegister    = "/account/register"
	RouteVerifyEmail = "/account/verify-email"

	RouteHealth = "/healthz"
)
