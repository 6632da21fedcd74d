package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/jrsteele09/go-oauth2-framework/clients"
	"github.com/jrsteele09/go-oauth2-framework/internal/utils"
	"github.com/jrsteele09/go-oauth2-framework/oauth2"
	"github.com/jrsteele09/go-oauth2-framework/oauthmodel"
	"github.com/jrsteele09/go-oauth2-framework/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuthorizationService implements the authorization and token endpoints of
// the OAuth2 protocol on top of a Model. It holds no per-request state and
// is safe for concurrent use.
//
// Every request is validated in a fixed order and the first failing check
// decides the outcome. Protocol errors are returned as *oauthmodel.Error;
// wrong resource owner credentials are not an error and yield a nil artifact.
type AuthorizationService struct {
	model          oauthmodel.Model
	accessTokenTTL time.Duration // reported as expires_in
	logger         zerolog.Logger
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

func WithLogger(logger zerolog.Logger) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.logger = logger
	}
}

// WithAccessTokenTTL sets the access token lifetime reported in token responses.
// It should match the lifetime the model mints access tokens with.
func WithAccessTokenTTL(ttl time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.accessTokenTTL = ttl
	}
}

// NewAuthorizationService initializes a new AuthorizationService over the given model.
func NewAuthorizationService(model oauthmodel.Model, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	if model == nil {
		return nil, errors.New("[NewAuthorizationService] model is required")
	}

	as := &AuthorizationService{
		model:          model,
		accessTokenTTL: token.DefaultAccessTokenTTL,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(as)
	}
	return as, nil
}

// AccessTokenTTL is the access token lifetime reported as expires_in
func (as *AuthorizationService) AccessTokenTTL() time.Duration {
	return as.accessTokenTTL
}

// AuthorizationRequest validates an authorization request and, when the
// resource owner's credentials are correct, issues an authorization code
// (response_type=code) or an access token (response_type=token).
// A nil artifact with a nil error means the credentials were rejected.
func (as *AuthorizationService) AuthorizationRequest(ctx context.Context, params *oauthmodel.AuthorizationParameters) (*string, error) {
	client, err := as.model.FindClient(ctx, params.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.AuthorizationRequest] FindClient")
	}

	if !params.ResponseType.Valid() {
		return nil, oauthmodel.ErrInvalidResponseType
	}
	if err := validateClientRedirect(client, params.RedirectURI); err != nil {
		return nil, err
	}
	if err := client.ValidateScopes(params.Scopes); err != nil {
		return nil, oauthmodel.ErrInvalidScope
	}

	validCredentials, err := as.model.ValidateCredentials(ctx, params.ClientID, params.Username, params.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.AuthorizationRequest] ValidateCredentials")
	}
	if !validCredentials {
		as.logger.Debug().Str("client_id", params.ClientID).Msg("authorization request: credentials rejected")
		return nil, nil
	}

	var artifact string
	switch params.ResponseType {
	case oauth2.CodeResponseType:
		artifact, err = as.model.GenerateCode(ctx, params.ClientID, params.Username, params.Scopes)
		if err != nil {
			return nil, errors.Wrap(err, "[AuthorizationService.AuthorizationRequest] GenerateCode")
		}
	case oauth2.TokenResponseType:
		artifact, err = as.model.GenerateAccessToken(ctx, params.ClientID, params.Username, params.Scopes)
		if err != nil {
			return nil, errors.Wrap(err, "[AuthorizationService.AuthorizationRequest] GenerateAccessToken")
		}
	}
	return &artifact, nil
}

// accessGrant is an issued access token and the scopes it carries
type accessGrant struct {
	accessToken string
	scopes      []string
}

// AccessTokenRequest handles the OAuth 2.0 token request and returns the
// access token. A nil token with a nil error means the password grant's
// credentials were rejected.
func (as *AuthorizationService) AccessTokenRequest(ctx context.Context, request *oauthmodel.TokenRequest) (*string, error) {
	grant, err := as.accessTokenGrant(ctx, request)
	if err != nil || grant == nil {
		return nil, err
	}
	return utils.Ptr(grant.accessToken), nil
}

// AccessTokenResponse is AccessTokenRequest shaped as an RFC 6749 token response.
// Scope reports what the token actually carries, which for the
// authorization_code grant comes from the code, not the request.
func (as *AuthorizationService) AccessTokenResponse(ctx context.Context, request *oauthmodel.TokenRequest) (*oauth2.TokenResponse, error) {
	grant, err := as.accessTokenGrant(ctx, request)
	if err != nil || grant == nil {
		return nil, err
	}
	return &oauth2.TokenResponse{
		AccessToken: utils.Ptr(grant.accessToken),
		TokenType:   oauth2.TokenTypeBearer,
		ExpiresIn:   int(as.accessTokenTTL.Seconds()),
		Scope:       oauth2.FormatScope(grant.scopes),
	}, nil
}

func (as *AuthorizationService) accessTokenGrant(ctx context.Context, request *oauthmodel.TokenRequest) (*accessGrant, error) {
	client, err := as.model.FindClient(ctx, request.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.AccessTokenRequest] FindClient")
	}

	if !request.GrantType.Valid() {
		return nil, oauthmodel.ErrInvalidGrantType
	}
	if err := validateClientRedirect(client, request.RedirectURI); err != nil {
		return nil, err
	}

	switch request.GrantType {
	case oauth2.PasswordGrant:
		return as.passwordGrant(ctx, client, request)
	default:
		return as.authorizationCodeGrant(ctx, client, request)
	}
}

func (as *AuthorizationService) passwordGrant(ctx context.Context, client *clients.Client, request *oauthmodel.TokenRequest) (*accessGrant, error) {
	if err := client.ValidateScopes(request.Scopes); err != nil {
		return nil, oauthmodel.ErrInvalidScope
	}

	validCredentials, err := as.model.ValidateCredentials(ctx, request.ClientID, request.Username, request.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.passwordGrant] ValidateCredentials")
	}
	if !validCredentials {
		as.logger.Debug().Str("client_id", request.ClientID).Msg("password grant: credentials rejected")
		return nil, nil
	}

	accessToken, err := as.model.GenerateAccessToken(ctx, request.ClientID, request.Username, request.Scopes)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.passwordGrant] GenerateAccessToken")
	}
	return &accessGrant{accessToken: accessToken, scopes: request.Scopes}, nil
}

func (as *AuthorizationService) authorizationCodeGrant(ctx context.Context, client *clients.Client, request *oauthmodel.TokenRequest) (*accessGrant, error) {
	code, err := as.model.ValidateCode(ctx, request.Code)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.authorizationCodeGrant] ValidateCode")
	}
	// A code is only redeemable by the client it was issued to
	if code == nil || code.ClientID != client.ID {
		return nil, oauthmodel.ErrInvalidCode
	}

	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(request.ClientSecret)) != 1 {
		return nil, oauthmodel.ErrInvalidClientSecret
	}

	// The identity and scopes embedded in the code are authoritative
	accessToken, err := as.model.GenerateAccessToken(ctx, code.ClientID, code.Username, code.Scopes)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.authorizationCodeGrant] GenerateAccessToken")
	}
	return &accessGrant{accessToken: accessToken, scopes: code.Scopes}, nil
}

// ValidateAccessToken reports whether rawToken is a valid, unexpired access token
func (as *AuthorizationService) ValidateAccessToken(ctx context.Context, rawToken string) (bool, error) {
	decoded, err := as.DecodeAccessToken(ctx, rawToken)
	if err != nil {
		return false, err
	}
	return decoded != nil, nil
}

// DecodeAccessToken returns the decoded access token, or nil if it is not valid
func (as *AuthorizationService) DecodeAccessToken(ctx context.Context, rawToken string) (*token.Token, error) {
	decoded, err := as.model.ValidateAccessToken(ctx, rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthorizationService.DecodeAccessToken] ValidateAccessToken")
	}
	if !decoded.Is(token.KindAccess) {
		return nil, nil
	}
	return decoded, nil
}

func validateClientRedirect(client *clients.Client, redirectURI string) error {
	if client == nil {
		return oauthmodel.ErrInvalidClient
	}
	if !client.HasRedirectURI(redirectURI) {
		return oauthmodel.ErrInvalidRedirectURI
	}
	return nil
}
