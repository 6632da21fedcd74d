package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-oauth2-framework/account"
	"github.com/jrsteele09/go-oauth2-framework/auth"
	"github.com/jrsteele09/go-oauth2-framework/clients"
	fakeclientrepo "github.com/jrsteele09/go-oauth2-framework/clients/fakerepo"
	"github.com/jrsteele09/go-oauth2-framework/internal/config"
	"github.com/jrsteele09/go-oauth2-framework/internal/logging"
	"github.com/jrsteele09/go-oauth2-framework/internal/store"
	"github.com/jrsteele09/go-oauth2-framework/mail"
	"github.com/jrsteele09/go-oauth2-framework/oauthmodel/memmodel"
	"github.com/jrsteele09/go-oauth2-framework/server"
	"github.com/jrsteele09/go-oauth2-framework/token"
	"github.com/jrsteele09/go-oauth2-framework/users"
	fakeuserrepo "github.com/jrsteele09/go-oauth2-framework/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.IsProduction(), os.Stdout)
	log.Logger = logger

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("error running server")
	}
	logger.Info().Msg("server stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(cfg.AppName)

	clientRepo, userRepo, closeStore, err := openRepos(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error().Err(err).Msg("closing store")
		}
	}()

	handler, err := newHandler(cfg, logger, clientRepo, userRepo)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(server, logger) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server, cfg.ShutdownTimeout)
}

// openRepos returns the bbolt-backed repositories when STORE_PATH is set and
// in-memory ones otherwise
func openRepos(cfg *config.Config, logger zerolog.Logger) (clients.Repo, users.UserRepo, func() error, error) {
	if cfg.StorePath == "" {
		logger.Warn().Msg("STORE_PATH not set, clients and users are kept in memory")
		return fakeclientrepo.NewFakeClientRepo(), fakeuserrepo.NewFakeUserRepo(), func() error { return nil }, nil
	}

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info().Str("path", cfg.StorePath).Msg("store opened")
	return db.Clients(), db.Users(), db.Close, nil
}

// newHandler wires the signer, model, engines and transport from configuration
func newHandler(cfg *config.Config, logger zerolog.Logger, clientRepo clients.Repo, userRepo users.UserRepo) (http.Handler, error) {
	keyRing := token.NewKeyRing(cfg.SigningKeyID, cfg.SigningSecret)
	previousKeys, err := cfg.ParsePreviousSigningKeys()
	if err != nil {
		return nil, err
	}
	for _, key := range previousKeys {
		keyRing.AddVerificationKey(key.KeyID, key.Secret)
	}

	var codecOptions []token.CodecOption
	if cfg.Issuer != "" {
		codecOptions = append(codecOptions, token.WithIssuer(cfg.Issuer))
	}
	codec := token.NewCodec(keyRing, codecOptions...)

	var mailer mail.Mailer = mail.NewLogMailer(logger)
	if cfg.UseSMTP() {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPAccount, cfg.SMTPPassword, mail.WithFrom(cfg.SMTPFrom))
	}

	grants := token.NewGrantIssuer(codec, token.WithCodeTTL(cfg.CodeTTL), token.WithAccessTokenTTL(cfg.AccessTokenTTL))
	model := memmodel.New(
		clientRepo,
		userRepo,
		mailer,
		grants,
		memmodel.WithLogger(logger),
	)

	if cfg.SeedDemo {
		if _, err := server.BootstrapDemo(context.Background(), model, cfg.BaseURL, logger); err != nil {
			return nil, fmt.Errorf("bootstrap demo: %w", err)
		}
	}

	authService, err := auth.NewAuthorizationService(model,
		auth.WithLogger(logger),
		auth.WithAccessTokenTTL(grants.AccessTokenTTL()),
	)
	if err != nil {
		return nil, err
	}

	accountService, err := account.NewService(model, codec, account.URLs{
		Authorize:     cfg.BaseURL + server.RouteOAuth2Authorize,
		ResetPassword: cfg.BaseURL + server.RouteResetPassword,
		VerifyEmail:   cfg.BaseURL + server.RouteVerifyEmail,
	},
		account.WithLogger(logger),
		account.WithResetPasswordTTL(cfg.ResetPasswordTTL),
		account.WithEmailVerificationTTL(cfg.EmailVerificationTTL),
	)
	if err != nil {
		return nil, err
	}

	return server.New(authService, accountService,
		server.WithLogger(logger),
		server.WithAllowedOrigins(cfg.AllowedOrigins...),
	)
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
