package token

import (
	"time"

	"github.com/pkg/errors"
)

// GrantIssuer mints and validates authorization codes and access tokens.
// Model implementations use it for their code and access-token capabilities.
type GrantIssuer struct {
	codec          *Codec
	codeTTL        time.Duration
	accessTokenTTL time.Duration
}

type GrantIssuerOption func(*GrantIssuer)

func WithCodeTTL(ttl time.Duration) GrantIssuerOption {
	return func(g *GrantIssuer) {
		g.codeTTL = ttl
	}
}

func WithAccessTokenTTL(ttl time.Duration) GrantIssuerOption {
	return func(g *GrantIssuer) {
		g.accessTokenTTL = ttl
	}
}

func NewGrantIssuer(codec *Codec, options ...GrantIssuerOption) *GrantIssuer {
	g := &GrantIssuer{
		codec:          codec,
		codeTTL:        DefaultCodeTTL,
		accessTokenTTL: DefaultAccessTokenTTL,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// AccessTokenTTL is the lifetime of access tokens minted by this issuer
func (g *GrantIssuer) AccessTokenTTL() time.Duration {
	return g.accessTokenTTL
}

func (g *GrantIssuer) GenerateCode(clientID, username string, scopes []string) (string, error) {
	code, err := g.codec.Encode(KindCode, Claims{ClientID: clientID, Username: username, Scopes: scopes}, g.codeTTL)
	if err != nil {
		return "", errors.Wrap(err, "[GrantIssuer.GenerateCode]")
	}
	return code, nil
}

// ValidateCode returns the decoded code, or nil if it is invalid, expired or not a code
func (g *GrantIssuer) ValidateCode(code string) *Token {
	decoded := g.codec.Decode(code)
	if !decoded.Is(KindCode) {
		return nil
	}
	return decoded
}

func (g *GrantIssuer) GenerateAccessToken(clientID, username string, scopes []string) (string, error) {
	accessToken, err := g.codec.Encode(KindAccess, Claims{ClientID: clientID, Username: username, Scopes: scopes}, g.accessTokenTTL)
	if err != nil {
		return "", errors.Wrap(err, "[GrantIssuer.GenerateAccessToken]")
	}
	return accessToken, nil
}

// ValidateAccessToken returns the decoded access token, or nil if it is invalid, expired or not an access token
func (g *GrantIssuer) ValidateAccessToken(accessToken string) *Token {
	decoded := g.codec.Decode(accessToken)
	if !decoded.Is(KindAccess) {
		return nil
	}
	return decoded
}
