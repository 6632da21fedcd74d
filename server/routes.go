package server

import "net/http"

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.Health(), s.APIMiddleware()...))
	// CORS preflight for every route; CorsMiddleware answers it
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(s.Health(), s.APIMiddleware()...))

	// OAuth2 API routes
	s.RegisterRouteHandler("POST "+RouteOAuth2Authorize, ChainMiddleware(s.Authorize(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOAuth2Authorize, ChainMiddleware(s.AuthorizeResume(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteOAuth2TokenInfo, ChainMiddleware(s.TokenInfo(), s.APIMiddleware()...))

	// Account routes
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPassword(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordForm(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPassword(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.Register(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteVerifyEmail, ChainMiddleware(s.VerifyEmail(), s.APIMiddleware()...))
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
