// Package memmodel is a reference oauthmodel.Model built on repositories,
// a mailer and a token.GrantIssuer. With the fake repositories it runs fully in memory.
package memmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-oauth2-framework/clients"
	"github.com/jrsteele09/go-oauth2-framework/mail"
	"github.com/jrsteele09/go-oauth2-framework/oauthmodel"
	"github.com/jrsteele09/go-oauth2-framework/token"
	"github.com/jrsteele09/go-oauth2-framework/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ oauthmodel.Model = (*Model)(nil)

type Model struct {
	clients                clients.Repo
	users                  users.UserRepo
	mailer                 mail.Mailer
	grants                 *token.GrantIssuer
	nowFunc                func() time.Time
	requireStrongPasswords bool
	logger                 zerolog.Logger
}

type Option func(*Model)

func WithNowFunc(now func() time.Time) Option {
	return func(m *Model) {
		m.nowFunc = now
	}
}

// WithPasswordPolicy toggles users.ValidatePasswordStrength for registration and reset
func WithPasswordPolicy(enforce bool) Option {
	return func(m *Model) {
		m.requireStrongPasswords = enforce
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

func New(clientRepo clients.Repo, userRepo users.UserRepo, mailer mail.Mailer, grants *token.GrantIssuer, options ...Option) *Model {
	m := &Model{
		clients:                clientRepo,
		users:                  userRepo,
		mailer:                 mailer,
		grants:                 grants,
		nowFunc:                time.Now,
		requireStrongPasswords: true,
		logger:                 log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// AddClient registers a client directly, bypassing any flow
func (m *Model) AddClient(client *clients.Client) error {
	return m.clients.Upsert(client)
}

// AddUser creates a user directly, bypassing registration and the password policy
func (m *Model) AddUser(clientID, email, username, password string, verified bool) error {
	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[Model.AddUser] HashPassword")
	}
	return m.users.Insert(&users.User{
		ClientID:     clientID,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		DateJoined:   m.nowFunc(),
		Verified:     verified,
	})
}

func (m *Model) FindClient(_ context.Context, clientID string) (*clients.Client, error) {
	client, err := m.clients.Get(clientID)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Model.FindClient]")
	}
	return client, nil
}

// ValidateCredentials accepts only verified users with a matching password
func (m *Model) ValidateCredentials(_ context.Context, clientID, username, password string) (bool, error) {
	user, err := m.users.Get(clientID, username)
	if errors.Is(err, users.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Model.ValidateCredentials]")
	}
	if !user.Verified {
		return false, nil
	}
	return user.CheckPassword(password), nil
}

func (m *Model) Register(_ context.Context, clientID, email, username, password string) (bool, error) {
	if username == "" || email == "" {
		return false, nil
	}
	if m.requireStrongPasswords {
		if err := users.ValidatePasswordStrength(password); err != nil {
			m.logger.Debug().Str("client_id", clientID).Err(err).Msg("register: weak password")
			return false, nil
		}
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return false, errors.Wrap(err, "[Model.Register] HashPassword")
	}

	err = m.users.Insert(&users.User{
		ClientID:     clientID,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		DateJoined:   m.nowFunc(),
	})
	if errors.Is(err, users.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Model.Register] Insert")
	}
	return true, nil
}

func (m *Model) ResetPassword(_ context.Context, clientID, username, newPassword string) (bool, error) {
	if m.requireStrongPasswords {
		if err := users.ValidatePasswordStrength(newPassword); err != nil {
			return false, nil
		}
	}

	passwordHash, err := users.HashPassword(newPassword)
	if err != nil {
		return false, errors.Wrap(err, "[Model.ResetPassword] HashPassword")
	}

	err = m.users.SetPasswordHash(clientID, username, passwordHash)
	if errors.Is(err, users.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Model.ResetPassword] SetPasswordHash")
	}
	return true, nil
}

// SendForgotPasswordEmail mails the reset link to the user's address on file.
// Unknown users report false so callers cannot enumerate accounts.
func (m *Model) SendForgotPasswordEmail(ctx context.Context, clientID, username, resetURL string) (bool, error) {
	user, err := m.users.Get(clientID, username)
	if errors.Is(err, users.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Model.SendForgotPasswordEmail] Get")
	}
	if user.Email == "" {
		return false, nil
	}

	err = m.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password:\n\n%s\n", user.Username, resetURL),
	})
	if err != nil {
		return false, errors.Wrap(err, "[Model.SendForgotPasswordEmail] Send")
	}
	return true, nil
}

func (m *Model) SendVerificationEmail(ctx context.Context, _ string, email, username, verifyURL string) (bool, error) {
	err := m.mailer.Send(ctx, mail.Message{
		To:      email,
		Subject: "Verify your email address",
		Body:    fmt.Sprintf("Hi %s,\n\nConfirm your email address with the link below:\n\n%s\n", username, verifyURL),
	})
	if err != nil {
		return false, errors.Wrap(err, "[Model.SendVerificationEmail] Send")
	}
	return true, nil
}

func (m *Model) Verify(_ context.Context, clientID, username string) (bool, error) {
	err := m.users.SetVerified(clientID, username, true)
	if errors.Is(err, users.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Model.Verify] SetVerified")
	}
	return true, nil
}

func (m *Model) GenerateCode(_ context.Context, clientID, username string, scopes []string) (string, error) {
	return m.grants.GenerateCode(clientID, username, scopes)
}

func (m *Model) ValidateCode(_ context.Context, code string) (*token.Token, error) {
	return m.grants.ValidateCode(code), nil
}

func (m *Model) GenerateAccessToken(_ context.Context, clientID, username string, scopes []string) (string, error) {
	return m.grants.GenerateAccessToken(clientID, username, scopes)
}

func (m *Model) ValidateAccessToken(_ context.Context, accessToken string) (*token.Token, error) {
	return m.grants.ValidateAccessToken(accessToken), nil
}
