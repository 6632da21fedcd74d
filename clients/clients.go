package clients

import "errors"

var (
	ErrNotFound     = errors.New("client not found")
	ErrInvalidScope = errors.New("invalid scope")
)

// Client is a registered relying party. Clients are read-only to the grant
// and account engines; only the storage layer creates or changes them.
type Client struct {
	ID                  string   `json:"id"`
	Description         string   `json:"description"`
	Secret              string   `json:"secret"`
	RedirectURIs        []string `json:"redirectURIs"`
	Scopes              []string `json:"scopes"`              // Allowed scopes for this client
	AllowRegister       bool     `json:"allowRegister"`       // Self-service registration and email verification
	AllowForgotPassword bool     `json:"allowForgotPassword"` // Self-service password reset
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks that every requested scope is allowed for this client.
// An empty request places no restriction and is always valid.
func (c *Client) ValidateScopes(requestedScopes []string) error {
	for _, scope := range requestedScopes {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

// HasRedirectURI reports whether uri exactly matches one of the registered redirect URIs
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if uri == registered {
			return true
		}
	}
	return false
}
