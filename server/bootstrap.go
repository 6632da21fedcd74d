package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-oauth2-framework/clients"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DemoClientID     = "demo-client"
	DemoClientName   = "Demo Client"
	DemoUsername     = "demo"
	DemoUserPassword = "123456"
	DemoRedirectURI  = "http://example.com/callback"
)

// DemoSeeder is the part of a model that can be seeded directly
type DemoSeeder interface {
	FindClient(ctx context.Context, clientID string) (*clients.Client, error)
	AddClient(client *clients.Client) error
	AddUser(clientID, email, username, password string, verified bool) error
}

// DemoCredentials are the generated credentials of the demo client
type DemoCredentials struct {
	ClientID     string
	ClientSecret string
}

// BootstrapDemo registers the demo client and its verified demo user.
// It does nothing if the demo client already exists; the returned
// credentials are then empty.
func BootstrapDemo(ctx context.Context, seeder DemoSeeder, baseURL string, logger zerolog.Logger) (DemoCredentials, error) {
	existing, err := seeder.FindClient(ctx, DemoClientID)
	if err != nil {
		return DemoCredentials{}, errors.Wrap(err, "[BootstrapDemo] FindClient")
	}
	if existing != nil {
		logger.Info().Str("client_id", DemoClientID).Msg("bootstrap: demo client already exists")
		return DemoCredentials{}, nil
	}

	// Generate a secure random client secret
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return DemoCredentials{}, errors.Wrap(err, "[BootstrapDemo] generate secret")
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	demoClient := &clients.Client{
		ID:          DemoClientID,
		Description: DemoClientName,
		Secret:      secret,
		RedirectURIs: []string{
			DemoRedirectURI,
			baseURL + "/callback",
		},
		Scopes:              []string{"read", "write"},
		AllowRegister:       true,
		AllowForgotPassword: true,
	}
	if err := seeder.AddClient(demoClient); err != nil {
		return DemoCredentials{}, errors.Wrap(err, "[BootstrapDemo] AddClient")
	}

	email := generateEmailFromBaseURL(DemoUsername, baseURL)
	if err := seeder.AddUser(DemoClientID, email, DemoUsername, DemoUserPassword, true); err != nil {
		return DemoCredentials{}, errors.Wrap(err, "[BootstrapDemo] AddUser")
	}

	logger.Info().
		Str("client_id", DemoClientID).
		Str("client_secret", secret).
		Strs("redirect_uris", demoClient.RedirectURIs).
		Str("username", DemoUsername).
		Str("email", email).
		Msg("bootstrap: created demo client and user")

	return DemoCredentials{ClientID: DemoClientID, ClientSecret: secret}, nil
}

// generateEmailFromBaseURL creates an email address from a username and base URL
// Example: ("admin", "https://auth.example.com/path") -> "admin@auth.example.com"
func generateEmailFromBaseURL(user, baseURL string) string {
	domain := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	domain = strings.SplitN(domain, "/", 2)[0] // Remove any path
	domain = strings.SplitN(domain, ":", 2)[0] // Remove port if present
	return fmt.Sprintf("%s@%s", user, domain)
}
