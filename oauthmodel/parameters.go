package oauthmodel

import (
	"net/url"

	"github.com/jrsteele09/go-oauth2-framework/oauth2"
)

// AuthorizationParameters holds parameters for the OAuth2 authorization request.
// These are typically received at the /oauth2/authorize endpoint together
// with the resource owner's credentials.
type AuthorizationParameters struct {
	// ResponseType specifies what the authorization endpoint should return.
	// Required: Yes
	// Supported values: "code", "token" (implicit)
	ResponseType oauth2.ResponseType

	// ClientID identifies the application requesting authorization.
	// Validated against: clients.Client.ID
	ClientID string

	// RedirectURI is where the authorization response will be sent.
	// Security: Must exactly match a pre-registered URI to prevent open redirects
	RedirectURI string

	// Scopes are the permissions being requested. Empty means no restriction is requested.
	// Validated against: clients.Client.Scopes
	Scopes []string

	// State is an opaque value echoed back to the client by the transport.
	// It is never inspected by the authorization service.
	State string

	// Username and Password are the resource owner's credentials
	Username string
	Password string
}

// Query encodes the parameters that identify the authorization request,
// so a user can be sent back to resume it. Credentials are never included.
func (p *AuthorizationParameters) Query() url.Values {
	values := url.Values{}
	values.Set("response_type", string(p.ResponseType))
	values.Set("client_id", p.ClientID)
	values.Set("redirect_uri", p.RedirectURI)
	if len(p.Scopes) > 0 {
		values.Set("scope", oauth2.FormatScope(p.Scopes))
	}
	if p.State != "" {
		values.Set("state", p.State)
	}
	return values
}
