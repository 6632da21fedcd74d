package oauthmodel

import "github.com/jrsteele09/go-oauth2-framework/oauth2"

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the request body sent to the /oauth2/token endpoint.
// Supports grant types: authorization_code, password
type TokenRequest struct {
	// GrantType selects the token flow.
	// Required: Yes
	GrantType oauth2.GrantType

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes (only for authorization_code grant)
	Code string

	// RedirectURI must be registered for the client.
	// Required: Yes (for all grant types)
	RedirectURI string

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes (for all grant types)
	ClientID string

	// ClientSecret is the secret credential of the client.
	// Required: Yes (only for authorization_code grant)
	// Security: Never log or expose this value
	ClientSecret string

	// Username and Password are the resource owner's credentials.
	// Required: Yes (only for password grant); ignored for authorization_code
	Username string
	Password string

	// Scopes requested for a password grant; ignored for authorization_code,
	// where the scopes embedded in the code apply.
	Scopes []string
}
