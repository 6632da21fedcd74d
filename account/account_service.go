// Package account implements the self-service account flows that sit beside
// the grant engine: forgot/reset password and register/verify email.
//
// Each flow has two phases. The first mints a single-purpose token and asks
// the model to deliver a link carrying it. The second consumes the token,
// which is only accepted by the phase matching its kind.
package account

import (
	"context"
	"net/url"
	"time"

	"github.com/jrsteele09/go-oauth2-framework/clients"
	"github.com/jrsteele09/go-oauth2-framework/oauthmodel"
	"github.com/jrsteele09/go-oauth2-framework/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// URLs are the externally reachable pages the emailed links point at
type URLs struct {
	// Authorize is the authorization page a user returns to once the account
	// flow is done. The original request's parameters are appended to it.
	Authorize string
	// ResetPassword receives the reset token as ?token=
	ResetPassword string
	// VerifyEmail receives the verification token as ?token=
	VerifyEmail string
}

// ForgotPasswordParameters names the account to reset and the authorization
// request to resume afterwards
type ForgotPasswordParameters struct {
	ClientID string
	Username string
	Resume   oauthmodel.AuthorizationParameters
}

type RegisterParameters struct {
	ClientID string
	Email    string
	Username string
	Password string
	Resume   oauthmodel.AuthorizationParameters
}

// RegisterResult is the outcome of a registration request
type RegisterResult int

const (
	// RegisterRejected means the model refused the registration
	RegisterRejected RegisterResult = iota
	// Registered means the account exists and the verification email was sent
	Registered
	// RegisteredEmailFailed means the account exists but the verification
	// email could not be sent. The registration is not rolled back.
	RegisteredEmailFailed
)

func (r RegisterResult) String() string {
	switch r {
	case Registered:
		return "registered"
	case RegisteredEmailFailed:
		return "registered_email_failed"
	default:
		return "rejected"
	}
}

type ResetPasswordResult struct {
	Reset     bool
	ReturnURL string
}

type VerificationResult struct {
	Verified  bool
	ReturnURL string
}

// Service runs the account flows against a Model. It holds no per-request state.
type Service struct {
	model                oauthmodel.Model
	codec                *token.Codec
	urls                 URLs
	resetPasswordTTL     time.Duration
	emailVerificationTTL time.Duration
	logger               zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithResetPasswordTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.resetPasswordTTL = ttl
	}
}

func WithEmailVerificationTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.emailVerificationTTL = ttl
	}
}

// NewService creates the account service. The codec signs the reset and
// verification tokens and may share its signer with the grant engine.
func NewService(model oauthmodel.Model, codec *token.Codec, urls URLs, options ...ServiceOption) (*Service, error) {
	if model == nil {
		return nil, errors.New("[account.NewService] model is required")
	}
	if codec == nil {
		return nil, errors.New("[account.NewService] codec is required")
	}
	if urls.ResetPassword == "" || urls.VerifyEmail == "" {
		return nil, errors.New("[account.NewService] reset password and verify email URLs are required")
	}

	s := &Service{
		model:                model,
		codec:                codec,
		urls:                 urls,
		resetPasswordTTL:     token.DefaultResetPasswordTTL,
		emailVerificationTTL: token.DefaultEmailVerificationTTL,
		logger:               log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// ForgotPasswordRequest mints a reset-password token and asks the model to
// email the reset link. It returns whatever the model reports for the send.
func (s *Service) ForgotPasswordRequest(ctx context.Context, params *ForgotPasswordParameters) (bool, error) {
	if _, err := s.findEnabledClient(ctx, params.ClientID, forgotPasswordEnabled); err != nil {
		return false, err
	}

	resetToken, err := s.codec.Encode(token.KindResetPassword, token.Claims{
		ClientID:  params.ClientID,
		Username:  params.Username,
		ReturnURL: s.returnURL(params.ClientID, params.Resume),
	}, s.resetPasswordTTL)
	if err != nil {
		return false, errors.Wrap(err, "[Service.ForgotPasswordRequest] Encode")
	}

	resetURL, err := tokenLink(s.urls.ResetPassword, resetToken)
	if err != nil {
		return false, errors.Wrap(err, "[Service.ForgotPasswordRequest] reset link")
	}

	sent, err := s.model.SendForgotPasswordEmail(ctx, params.ClientID, params.Username, resetURL)
	if err != nil {
		return false, errors.Wrap(err, "[Service.ForgotPasswordRequest] SendForgotPasswordEmail")
	}
	if !sent {
		s.logger.Debug().Str("client_id", params.ClientID).Msg("forgot password: email not sent")
	}
	return sent, nil
}

// ResetPasswordRequest consumes a reset-password token and sets the new password
// for the account it names
func (s *Service) ResetPasswordRequest(ctx context.Context, rawToken, newPassword string) (*ResetPasswordResult, error) {
	decoded, err := s.resetPasswordToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	reset, err := s.model.ResetPassword(ctx, decoded.ClientID, decoded.Username, newPassword)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ResetPasswordRequest] ResetPassword")
	}
	return &ResetPasswordResult{Reset: reset, ReturnURL: decoded.ReturnURL}, nil
}

// CheckResetPasswordToken runs the checks ResetPasswordRequest applies to
// its token without consuming it, so a reset page can reject a dead link
// before asking for a new password.
func (s *Service) CheckResetPasswordToken(ctx context.Context, rawToken string) error {
	_, err := s.resetPasswordToken(ctx, rawToken)
	return err
}

func (s *Service) resetPasswordToken(ctx context.Context, rawToken string) (*token.Token, error) {
	decoded := s.codec.Decode(rawToken)
	if !decoded.Is(token.KindResetPassword) {
		return nil, oauthmodel.ErrInvalidToken
	}
	if _, err := s.findEnabledClient(ctx, decoded.ClientID, forgotPasswordEnabled); err != nil {
		return nil, err
	}
	return decoded, nil
}

// RegisterRequest creates an account through the model and emails a
// verification link. A failed email does not undo the registration; it is
// logged and reported as RegisteredEmailFailed.
func (s *Service) RegisterRequest(ctx context.Context, params *RegisterParameters) (RegisterResult, error) {
	if _, err := s.findEnabledClient(ctx, params.ClientID, registerEnabled); err != nil {
		return RegisterRejected, err
	}

	registered, err := s.model.Register(ctx, params.ClientID, params.Email, params.Username, params.Password)
	if err != nil {
		return RegisterRejected, errors.Wrap(err, "[Service.RegisterRequest] Register")
	}
	if !registered {
		s.logger.Debug().Str("client_id", params.ClientID).Msg("register: rejected by model")
		return RegisterRejected, nil
	}

	if err := s.sendVerification(ctx, params); err != nil {
		s.logger.Warn().Err(err).
			Str("client_id", params.ClientID).
			Str("username", params.Username).
			Msg("register: verification email failed")
		return RegisteredEmailFailed, nil
	}
	return Registered, nil
}

func (s *Service) sendVerification(ctx context.Context, params *RegisterParameters) error {
	verifyToken, err := s.codec.Encode(token.KindEmailVerification, token.Claims{
		ClientID:  params.ClientID,
		Username:  params.Username,
		Email:     params.Email,
		ReturnURL: s.returnURL(params.ClientID, params.Resume),
	}, s.emailVerificationTTL)
	if err != nil {
		return errors.Wrap(err, "Encode")
	}

	verifyURL, err := tokenLink(s.urls.VerifyEmail, verifyToken)
	if err != nil {
		return errors.Wrap(err, "verify link")
	}

	sent, err := s.model.SendVerificationEmail(ctx, params.ClientID, params.Email, params.Username, verifyURL)
	if err != nil {
		return errors.Wrap(err, "SendVerificationEmail")
	}
	if !sent {
		return errors.New("model did not send the verification email")
	}
	return nil
}

// EmailVerificationRequest consumes an email-verification token and marks
// the account it names as verified
func (s *Service) EmailVerificationRequest(ctx context.Context, rawToken string) (*VerificationResult, error) {
	decoded := s.codec.Decode(rawToken)
	if !decoded.Is(token.KindEmailVerification) {
		return nil, oauthmodel.ErrInvalidToken
	}
	if _, err := s.findEnabledClient(ctx, decoded.ClientID, registerEnabled); err != nil {
		return nil, err
	}

	verified, err := s.model.Verify(ctx, decoded.ClientID, decoded.Username)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.EmailVerificationRequest] Verify")
	}
	return &VerificationResult{Verified: verified, ReturnURL: decoded.ReturnURL}, nil
}

func forgotPasswordEnabled(c *clients.Client) bool { return c.AllowForgotPassword }
func registerEnabled(c *clients.Client) bool       { return c.AllowRegister }

func (s *Service) findEnabledClient(ctx context.Context, clientID string, enabled func(*clients.Client) bool) (*clients.Client, error) {
	client, err := s.model.FindClient(ctx, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.findEnabledClient] FindClient")
	}
	if client == nil {
		return nil, oauthmodel.ErrInvalidClient
	}
	if !enabled(client) {
		return nil, oauthmodel.ErrFunctionNotEnabled
	}
	return client, nil
}

// returnURL points back at the authorization page with the original request,
// so the user can resume it. Empty when no authorization page is configured.
func (s *Service) returnURL(clientID string, resume oauthmodel.AuthorizationParameters) string {
	if s.urls.Authorize == "" {
		return ""
	}
	if resume.ClientID == "" {
		resume.ClientID = clientID
	}
	link, err := withQuery(s.urls.Authorize, resume.Query())
	if err != nil {
		s.logger.Warn().Err(err).Str("authorize_url", s.urls.Authorize).Msg("account: bad authorize URL")
		return ""
	}
	return link
}

func tokenLink(base, rawToken string) (string, error) {
	return withQuery(base, url.Values{"token": []string{rawToken}})
}

// withQuery adds values to base, keeping any query base already has
func withQuery(base string, values url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	query := u.Query()
	for key, vs := range values {
		for _, v := range vs {
			query.Add(key, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
