// Package gateway obtains access tokens for the signed-in user, falling back
// to an interactive redirect when the identity provider requires it.
package gateway

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

var (
	// ErrRedirecting means an interactive redirect was issued. The operation
	// is abandoned and resumes, if at all, after the redirect completes.
	ErrRedirecting = errors.New("redirecting to identity provider")

	// ErrNoAccount means no account was given.
	ErrNoAccount = errors.New("no signed-in account")
)

// IsRedirecting reports whether err is ErrRedirecting.
func IsRedirecting(err error) bool {
	return errors.Is(err, ErrRedirecting)
}

// HintStore receives resume-after-redirect hints. Writes never fail.
type HintStore interface {
	Set(key, value string)
}

// TokenResult is a successfully acquired access token.
type TokenResult struct {
	AccessToken   string
	GrantedScopes []string
}

// Gateway acquires tokens through an identity client.
type Gateway struct {
	client  identity.Client
	session HintStore
}

// New creates a Gateway. session receives resume hints and may be nil.
func New(client identity.Client, session HintStore) *Gateway {
	return &Gateway{client: client, session: session}
}

type fetchOptions struct {
	resumeKey  string
	noRedirect bool
}

// Option customizes a FetchAsUser call.
type Option func(*fetchOptions)

// WithResumeHint records key="1" in session storage before an interactive
// redirect, so the caller can resume its action afterwards.
func WithResumeHint(key string) Option {
	return func(o *fetchOptions) { o.resumeKey = key }
}

// WithoutRedirect makes FetchAsUser return the interaction-required error
// unchanged instead of redirecting. No resume hint is written.
func WithoutRedirect() Option {
	return func(o *fetchOptions) { o.noRedirect = true }
}

// FetchAsUser returns an access token for account covering scopes.
//
// When the provider requires interaction, FetchAsUser issues a redirect and
// returns ErrRedirecting. Other failures are returned unchanged.
func (g *Gateway) FetchAsUser(ctx context.Context, account *models.Account, scopes []string, opts ...Option) (TokenResult, error) {
	if account == nil {
		return TokenResult{}, ErrNoAccount
	}
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	req := identity.TokenRequest{Account: account, Scopes: scopes}
	res, err := g.client.AcquireTokenSilent(ctx, req)
	if err == nil {
		return TokenResult{
			AccessToken:   res.AccessToken,
			GrantedScopes: grantedScopes(res.AccessToken, res.Scopes),
		}, nil
	}
	if !identity.IsInteractionRequired(err) || o.noRedirect {
		return TokenResult{}, err
	}

	logger.Info("token requires interaction, redirecting", "code", identity.ErrorCode(err), "resume", o.resumeKey)
	if o.resumeKey != "" && g.session != nil {
		g.session.Set(o.resumeKey, "1")
	}
	if rerr := g.client.AcquireTokenRedirect(ctx, req); rerr != nil {
		return TokenResult{}, rerr
	}
	return TokenResult{}, ErrRedirecting
}

// grantedScopes reads the scp claim of a JWT access token without verifying
// it, falling back to the scopes reported with the token.
func grantedScopes(accessToken string, reported []string) []string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err == nil {
		if scp, ok := claims["scp"].(string); ok && strings.TrimSpace(scp) != "" {
			return strings.Fields(scp)
		}
		if roles, ok := claims["roles"].([]any); ok && len(roles) > 0 {
			out := make([]string, 0, len(roles))
			for _, r := range roles {
				if s, ok := r.(string); ok {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return slices.Clone(reported)
}
