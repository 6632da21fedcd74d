package oauth2

import "strings"

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Returns a short-lived authorization code that must be exchanged for an access token at the token endpoint.
	// Example: /oauth2/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"

	// TokenResponseType indicates the implicit flow.
	// Returns an access token directly from the authorization endpoint, in the redirect URI fragment.
	TokenResponseType ResponseType = "token"
)

// Valid reports whether the response type is supported by the authorization endpoint
func (r ResponseType) Valid() bool {
	return r == CodeResponseType || r == TokenResponseType
}

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for an access token.
	// Token request includes: code, client_id, client_secret, redirect_uri
	// The identity and scopes in the code are authoritative; request parameters cannot override them.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// PasswordGrant exchanges resource owner credentials for an access token.
	// Token request includes: client_id, redirect_uri, username, password, scope
	PasswordGrant GrantType = "password"
)

// Valid reports whether the grant type is supported by the token endpoint
func (g GrantType) Valid() bool {
	return g == AuthorizationCodeGrant || g == PasswordGrant
}

// TokenTypeBearer is the only token type issued
const TokenTypeBearer = "bearer"

// ParseScope splits a space separated scope parameter, dropping empty entries
func ParseScope(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// FormatScope joins scopes into a space separated scope parameter
func FormatScope(scopes []string) string {
	return strings.Join(scopes, " ")
}
