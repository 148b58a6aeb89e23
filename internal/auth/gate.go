// Package auth decides whether a request may proceed: public routes pass,
// protected routes need the static API key or a live session.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/serroba/linkgate/internal/session"
)

// Mode selects how administrators authenticate.
type Mode string

const (
	ModeNone     Mode = "none"
	ModePassword Mode = "password"
	ModeOAuth    Mode = "oauth"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeNone, ModePassword, ModeOAuth:
		return m, nil
	default:
		return "", fmt.Errorf("unknown auth mode %q", s)
	}
}

// Deny reasons, returned to clients as the error message.
const (
	ReasonMissingCredentials = "missing_credentials"
	ReasonInvalidSession     = "invalid_session"
	ReasonExpiredSession     = "expired_session"
)

// Request is the part of an HTTP request the gate looks at.
type Request struct {
	Method        string
	Path          string
	Authorization string
}

// Principal identifies who a protected request runs as.
type Principal struct {
	APIKey  bool
	Session *session.Session
}

// Verdict is the gate's decision. Reason is set only when denied.
type Verdict struct {
	Allowed   bool
	Reason    string
	Principal *Principal
}

func allow(p *Principal) Verdict {
	return Verdict{Allowed: true, Principal: p}
}

func deny(reason string) Verdict {
	return Verdict{Reason: reason}
}

// SessionValidator looks up bearer sessions.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*session.Session, error)
}

// Gate evaluates requests against the route table and credentials.
type Gate struct {
	mode     Mode
	apiKey   string
	routes   *RouteTable
	sessions SessionValidator
}

// NewGate creates a gate. An empty apiKey disables API key access.
func NewGate(mode Mode, apiKey string, routes *RouteTable, sessions SessionValidator) *Gate {
	return &Gate{
		mode:     mode,
		apiKey:   apiKey,
		routes:   routes,
		sessions: sessions,
	}
}

// Mode returns the configured mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// Evaluate classifies req. A non-nil error means the session store failed
// and no decision could be made.
func (g *Gate) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	if g.mode == ModeNone || g.routes.IsPublic(req.Method, req.Path) {
		return allow(nil), nil
	}

	token, ok := BearerToken(req.Authorization)
	if !ok {
		return deny(ReasonMissingCredentials), nil
	}

	if g.apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(g.apiKey)) == 1 {
		return allow(&Principal{APIKey: true}), nil
	}

	s, err := g.sessions.Validate(ctx, token)

	switch {
	case err == nil:
		return allow(&Principal{Session: s}), nil
	case errors.Is(err, session.ErrExpired):
		return deny(ReasonExpiredSession), nil
	case errors.Is(err, session.ErrInvalid):
		return deny(ReasonInvalidSession), nil
	default:
		return Verdict{}, fmt.Errorf("validate session: %w", err)
	}
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])

	return token, token != ""
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by the gate, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)

	return p, ok && p != nil
}
