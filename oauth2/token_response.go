package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
type TokenResponse struct {
	// AccessToken is the signed token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer" in this implementation).
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: This is a hint - actual expiration is in the token's "exp" claim
	ExpiresIn int `json:"expires_in,omitempty"`

	// Scope indicates the access token's granted permissions as a space-separated list.
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse is the RFC 6749 section 5.2 error body
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
