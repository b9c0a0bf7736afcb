package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
)

// Outcome is how a bootstrap ended.
type Outcome int

const (
	// OutcomeNoAccount ends bootstrap without an active account.
	OutcomeNoAccount Outcome = iota
	// OutcomeRedirect activated the account of a completed redirect.
	OutcomeRedirect
	// OutcomeCachedAccount activated an account already in the cache.
	OutcomeCachedAccount
	// OutcomeSSO activated an account through silent single sign-on.
	OutcomeSSO
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoAccount:
		return "no_account"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeCachedAccount:
		return "cached_account"
	case OutcomeSSO:
		return "sso"
	default:
		return "unknown"
	}
}

// HasAccount reports whether the outcome activated an account.
func (o Outcome) HasAccount() bool { return o != OutcomeNoAccount }

// Bootstrapper establishes the session exactly once. Repeated and concurrent
// Run calls wait for the first one and return its outcome.
type Bootstrapper struct {
	sc       *Context
	location string
	scopes   []string

	once     sync.Once
	outcome  Outcome
	err      error
	cleaned  string
	stripped bool
}

// NewBootstrapper creates a bootstrap for one run. location is the current
// location, which carries the authorization response after a redirect.
func NewBootstrapper(sc *Context, location string, scopes []string) *Bootstrapper {
	return &Bootstrapper{sc: sc, location: location, scopes: scopes, cleaned: location}
}

// Run performs the bootstrap. Only unrecognized redirect errors and
// unrecognized single sign-on errors are returned; every other path ends
// with an outcome.
func (b *Bootstrapper) Run(ctx context.Context) (Outcome, error) {
	b.once.Do(func() {
		b.outcome, b.err = b.run(ctx)
		if b.err != nil {
			logger.Error("bootstrap failed", "error", b.err)
			return
		}
		logger.Info("bootstrap finished", "outcome", b.outcome.String())
	})
	return b.outcome, b.err
}

// Location returns the current location, without authorization response
// parameters if they had to be discarded.
func (b *Bootstrapper) Location() string { return b.cleaned }

// Stripped reports whether the location was cleaned.
func (b *Bootstrapper) Stripped() bool { return b.stripped }

func (b *Bootstrapper) run(ctx context.Context) (Outcome, error) {
	client := b.sc.Client()

	if err := client.Initialize(ctx); err != nil {
		return OutcomeNoAccount, fmt.Errorf("initialize identity client: %w", err)
	}

	res, err := client.HandleRedirectPromise(ctx, b.location)
	switch {
	case err != nil && identity.ErrorCode(err) == identity.CodeNoTokenRequestCache:
		// The response outlived its request cache entry.
		b.cleaned = StripAuthParams(b.location)
		b.stripped = true
		logger.Warn("discarding redirect response without request cache", "location", b.cleaned)
	case err != nil:
		return OutcomeNoAccount, fmt.Errorf("handle redirect: %w", err)
	case res != nil && res.Account != nil:
		b.sc.Activate(res.Account)
		return OutcomeRedirect, nil
	}

	if accounts := client.GetAllAccounts(); len(accounts) > 0 {
		b.sc.Activate(&accounts[0])
		return OutcomeCachedAccount, nil
	}

	hint := b.sc.LoginHint()
	if hint == "" {
		return OutcomeNoAccount, nil
	}

	sso, err := client.SSOSilent(ctx, identity.SSORequest{Scopes: b.scopes, LoginHint: hint})
	if err != nil {
		if identity.IsInteractionRequired(err) {
			logger.Info("silent sign-on needs interaction", "code", identity.ErrorCode(err))
			return OutcomeNoAccount, nil
		}
		return OutcomeNoAccount, fmt.Errorf("silent sign-on: %w", err)
	}
	if sso == nil || sso.Account == nil {
		return OutcomeNoAccount, nil
	}
	b.sc.Activate(sso.Account)
	return OutcomeSSO, nil
}
