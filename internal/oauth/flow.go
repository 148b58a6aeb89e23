// Package oauth implements the authorization code flow with PKCE against an
// external identity provider. The two halves of the flow are bridged by a
// short-lived transaction record in the key-value store.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/serroba/linkgate/internal/kv"
	"github.com/serroba/linkgate/internal/session"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// CallbackPath is where the provider sends the user back.
	CallbackPath = "/api/callback"
	// DefaultAllowedRole is the role required when none is configured.
	DefaultAllowedRole = "admin"
)

// Config describes the identity provider and this client.
type Config struct {
	ProviderURL   string
	AuthorizePath string
	TokenPath     string
	ClientID      string
	ClientSecret  string
	// PublicHost, when set, fixes the redirect URI origin instead of using
	// the inbound request's origin.
	PublicHost  string
	Scopes      []string
	AllowedRole string
	// ExchangeTimeout bounds the token endpoint call.
	ExchangeTimeout time.Duration
}

// SessionCreator creates a session for an authenticated identity.
type SessionCreator interface {
	Create(ctx context.Context, p session.Payload) (*session.Session, error)
}

// Flow runs the two halves of the login.
type Flow struct {
	cfg        Config
	txns       transactions
	sessions   SessionCreator
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFlow creates a Flow.
func NewFlow(cfg Config, store kv.Store, sessions SessionCreator, logger *zap.Logger) *Flow {
	timeout := cfg.ExchangeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if cfg.AllowedRole == "" {
		cfg.AllowedRole = DefaultAllowedRole
	}

	return &Flow{
		cfg:        cfg,
		txns:       transactions{store: store},
		sessions:   sessions,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// RedirectURI returns the callback URL for a request arriving at origin.
func (f *Flow) RedirectURI(origin string) string {
	base := origin
	if f.cfg.PublicHost != "" {
		base = f.cfg.PublicHost
	}

	return strings.TrimRight(base, "/") + CallbackPath
}

func (f *Flow) oauthConfig(redirectURI string) *oauth2.Config {
	provider := strings.TrimRight(f.cfg.ProviderURL, "/")

	return &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider + f.cfg.AuthorizePath,
			TokenURL:  provider + f.cfg.TokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      f.cfg.Scopes,
	}
}

// Initiate starts a login for a request arriving at origin and returns the
// provider authorization URL the user agent should be sent to.
func (f *Flow) Initiate(ctx context.Context, origin string) (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", err
	}

	pkce, err := GeneratePKCE()
	if err != nil {
		return "", err
	}

	redirectURI := f.RedirectURI(origin)

	if err := f.txns.save(ctx, state, Transaction{CodeVerifier: pkce.Verifier, RedirectURI: redirectURI}); err != nil {
		return "", err
	}

	return f.oauthConfig(redirectURI).AuthCodeURL(state, oauth2.S256ChallengeOption(pkce.Verifier)), nil
}

// Complete finishes a login from the provider callback and returns the new
// session. Every failure is a *CallbackError.
func (f *Flow) Complete(ctx context.Context, code, state string) (*session.Session, error) {
	if code == "" || state == "" {
		return nil, callbackError(MarkerMissingParams, nil)
	}

	txn, err := f.txns.take(ctx, state)
	if err != nil {
		if !errors.Is(err, errTransactionNotFound) {
			f.logger.Error("failed to load oauth transaction", zap.Error(err))
		}

		return nil, callbackError(MarkerInvalidState, err)
	}

	tok, err := f.exchange(ctx, txn, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			f.logger.Warn("token endpoint rejected exchange",
				zap.Int("status", retrieveErr.Response.StatusCode),
				zap.String("error_code", retrieveErr.ErrorCode),
			)

			return nil, callbackError(MarkerTokenExchangeFailed, err)
		}

		f.logger.Error("token exchange failed", zap.Error(err))

		return nil, callbackError(MarkerUnknown, err)
	}

	role, _ := tok.Extra("role").(string)
	if role != f.cfg.AllowedRole {
		f.logger.Info("login refused for role", zap.String("role", role))

		return nil, callbackError(MarkerUnauthorizedRole, nil)
	}

	me, _ := tok.Extra("me").(string)

	s, err := f.sessions.Create(ctx, session.Payload{
		Profile: tok.Extra("profile"),
		Me:      me,
		Role:    role,
	})
	if err != nil {
		return nil, callbackError(MarkerSessionFailed, err)
	}

	return s, nil
}

func (f *Flow) exchange(ctx context.Context, txn *Transaction, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)

	tok, err := f.oauthConfig(txn.RedirectURI).Exchange(ctx, code, oauth2.VerifierOption(txn.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	return tok, nil
}
