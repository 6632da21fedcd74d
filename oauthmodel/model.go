package oauthmodel

import (
	"context"

	"github.com/jrsteele09/go-oauth2-framework/clients"
	"github.com/jrsteele09/go-oauth2-framework/token"
)

// Model is the storage, credential and delivery capability set the grant and
// account engines are built on. Transport metadata for the originating
// request travels in ctx; the engines pass it through without inspecting it.
//
// Returned errors are infrastructure failures and abort the request.
// Negative outcomes (unknown client, wrong password, user exists) are
// reported through the result values, never as errors.
type Model interface {
	// FindClient returns the client, or nil if no such client is registered
	FindClient(ctx context.Context, clientID string) (*clients.Client, error)
	ValidateCredentials(ctx context.Context, clientID, username, password string) (bool, error)
	Register(ctx context.Context, clientID, email, username, password string) (bool, error)
	ResetPassword(ctx context.Context, clientID, username, newPassword string) (bool, error)
	SendForgotPasswordEmail(ctx context.Context, clientID, username, resetURL string) (bool, error)
	SendVerificationEmail(ctx context.Context, clientID, email, username, verifyURL string) (bool, error)
	Verify(ctx context.Context, clientID, username string) (bool, error)

	GenerateCode(ctx context.Context, clientID, username string, scopes []string) (string, error)
	// ValidateCode returns the decoded code, or nil if it is invalid, expired or not a code
	ValidateCode(ctx context.Context, code string) (*token.Token, error)
	GenerateAccessToken(ctx context.Context, clientID, username string, scopes []string) (string, error)
	// ValidateAccessToken returns the decoded token, or nil if it is invalid, expired or not an access token
	ValidateAccessToken(ctx context.Context, accessToken string) (*token.Token, error)
}
