package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkgate/internal/auth"
	"github.com/serroba/linkgate/internal/oauth"
	"github.com/serroba/linkgate/internal/session"
	"go.uber.org/zap"
)

// LoginFlow runs the provider login.
type LoginFlow interface {
	Initiate(ctx context.Context, origin string) (string, error)
	Complete(ctx context.Context, code, state string) (*session.Session, error)
}

// Sessions creates and revokes sessions.
type Sessions interface {
	Create(ctx context.Context, p session.Payload) (*session.Session, error)
	Revoke(ctx context.Context, token string) error
}

// AuthHandler serves login, callback and logout for the configured mode.
type AuthHandler struct {
	mode     auth.Mode
	flow     LoginFlow
	sessions Sessions
	password *auth.PasswordVerifier
	logger   *zap.Logger
}

// NewAuthHandler creates an auth handler. flow is used in oauth mode and
// password in password mode; either may be nil otherwise.
func NewAuthHandler(
	mode auth.Mode,
	flow LoginFlow,
	sessions Sessions,
	password *auth.PasswordVerifier,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		mode:     mode,
		flow:     flow,
		sessions: sessions,
		password: password,
		logger:   logger,
	}
}

// StartLogin sends the browser to the provider in oauth mode. Other modes
// have nothing to start.
func (h *AuthHandler) StartLogin(ctx context.Context, _ *struct{}) (*RedirectResponse, error) {
	if h.mode != auth.ModeOAuth {
		return &RedirectResponse{Status: http.StatusNoContent}, nil
	}

	authURL, err := h.flow.Initiate(ctx, RequestMetaFromContext(ctx).Origin)
	if err != nil {
		h.logger.Error("failed to start login", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to start login")
	}

	return &RedirectResponse{Status: http.StatusFound, Location: authURL}, nil
}

// Callback finishes the provider login and hands the token to the app shell.
func (h *AuthHandler) Callback(ctx context.Context, req *CallbackRequest) (*RedirectResponse, error) {
	if h.mode != auth.ModeOAuth {
		return nil, huma.Error404NotFound("Not found")
	}

	s, err := h.flow.Complete(ctx, req.Code, req.State)
	if err != nil {
		marker := oauth.MarkerUnknown

		var cbErr *oauth.CallbackError
		if errors.As(err, &cbErr) {
			marker = cbErr.Marker
		}

		h.logger.Info("login failed", zap.String("reason", marker), zap.Error(err))

		return &RedirectResponse{
			Status:   http.StatusFound,
			Location: "/login?error=" + url.QueryEscape(marker),
		}, nil
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: "/?token=" + url.QueryEscape(s.Token),
	}, nil
}

// PasswordLogin issues a session for the admin password.
func (h *AuthHandler) PasswordLogin(ctx context.Context, req *PasswordLoginRequest) (*PasswordLoginResponse, error) {
	if h.mode != auth.ModePassword || h.password == nil {
		return nil, huma.Error404NotFound("Not found")
	}

	if !h.password.Verify(req.Body.Password) {
		return nil, huma.Error401Unauthorized("invalid_password")
	}

	s, err := h.sessions.Create(ctx, session.Payload{Role: oauth.DefaultAllowedRole})
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to create session")
	}

	resp := &PasswordLoginResponse{}
	resp.Body.Token = s.Token
	resp.Body.ExpiresAt = s.ExpiresAt.UTC().Format(time.RFC3339)

	return resp, nil
}

// Logout revokes the bearer session. API key callers have nothing to revoke.
func (h *AuthHandler) Logout(ctx context.Context, req *LogoutRequest) (*SuccessResponse, error) {
	var token string

	if p, ok := auth.PrincipalFrom(ctx); ok {
		if p.Session != nil {
			token = p.Session.Token
		}
	} else {
		token, _ = auth.BearerToken(req.Authorization)
	}

	if token != "" {
		if err := h.sessions.Revoke(ctx, token); err != nil {
			h.logger.Error("failed to revoke session", zap.Error(err))

			return nil, huma.Error500InternalServerError("failed to revoke session")
		}
	}

	resp := &SuccessResponse{}
	resp.Body.Success = true

	return resp, nil
}
