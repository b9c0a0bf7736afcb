// Package guard drives automatic interactive login while no account is
// active, without looping: one redirect per terminal session, plus one
// forced retry per mount when the cache turns out to be empty.
package guard

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/session"
)

// Action is the result of an evaluation.
type Action int

const (
	// ActionNone means an account is active; the guarded content may run.
	ActionNone Action = iota
	// ActionRedirect means a login redirect was issued.
	ActionRedirect
	// ActionForcedRetry means a login redirect was issued although the
	// attempt flag was already set.
	ActionForcedRetry
	// ActionWait means nothing happens automatically; the waiting view is
	// shown with its manual controls.
	ActionWait
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRedirect:
		return "redirect"
	case ActionForcedRetry:
		return "forced_retry"
	case ActionWait:
		return "wait"
	default:
		return "unknown"
	}
}

// ResetMessage is shown after ResetSession.
const ResetMessage = "Session reset. Press r to sign in again."

// Options configures a Guard.
type Options struct {
	RedirectURI string
	Scopes      []string
}

// Diagnostics describes the guard's view of the session for the waiting
// screen.
type Diagnostics struct {
	Origin          string
	RedirectTarget  string
	LoginHint       string
	LastError       string
	CachedAccounts  int
	SecureContext   bool
	AttemptedFlag   bool
	InProgress      bool
	StorageDegraded bool
}

// Guard is created once per mount of the guarded view.
type Guard struct {
	sc   *session.Context
	opts Options

	mu        sync.Mutex
	evaluated bool
	forced    bool
	lastErr   string
	message   string
}

// New creates a Guard for one mount.
func New(sc *session.Context, opts Options) *Guard {
	return &Guard{sc: sc, opts: opts}
}

// Evaluate decides whether to issue a login redirect. It is meant to run
// whenever account presence or interaction status changes. The decision is
// made under the guard's lock; the navigation itself runs without it.
func (g *Guard) Evaluate(ctx context.Context) (Action, error) {
	action, req := g.decide()
	if action != ActionRedirect && action != ActionForcedRetry {
		return action, nil
	}
	if err := g.navigate(ctx, req); err != nil {
		return ActionWait, err
	}
	return action, nil
}

func (g *Guard) decide() (Action, identity.LoginRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()

	client := g.sc.Client()
	if g.sc.ActiveAccount() != nil {
		return ActionNone, identity.LoginRequest{}
	}
	if client.InteractionInProgress() {
		return ActionWait, identity.LoginRequest{}
	}

	first := !g.evaluated
	g.evaluated = true

	if !g.sc.AttemptedFlag() {
		return ActionRedirect, g.prepareLogin()
	}

	if first && !g.forced && len(client.GetAllAccounts()) == 0 {
		g.forced = true
		logger.Info("attempt flag survived without cached accounts, retrying login once")
		return ActionForcedRetry, g.prepareLogin()
	}

	return ActionWait, identity.LoginRequest{}
}

// Retry clears the attempt flag and issues a login redirect immediately.
func (g *Guard) Retry(ctx context.Context) error {
	g.mu.Lock()
	g.message = ""
	g.sc.ClearAttemptedFlag()
	req := g.prepareLogin()
	g.mu.Unlock()

	return g.navigate(ctx, req)
}

// ResetSession forgets the login hint, the attempt flag and the active
// account. It does not redirect.
func (g *Guard) ResetSession() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sc.ClearLoginHint()
	g.sc.ClearAttemptedFlag()
	g.sc.Deactivate()
	g.lastErr = ""
	g.message = ResetMessage
	logger.Info("session reset by user")
}

// prepareLogin sets the attempt flag and builds the login request, with the
// stored login hint when there is one. g.mu must be held.
func (g *Guard) prepareLogin() identity.LoginRequest {
	g.sc.SetAttemptedFlag()

	req := identity.LoginRequest{Scopes: g.opts.Scopes}
	if hint := g.sc.LoginHint(); hint != "" {
		req.LoginHint = hint
	} else {
		req.Prompt = identity.PromptSelectAccount
	}
	return req
}

// navigate issues the login redirect without holding g.mu. Failures are
// kept for display.
func (g *Guard) navigate(ctx context.Context, req identity.LoginRequest) error {
	err := g.sc.Client().LoginRedirect(ctx, req)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.lastErr = err.Error()
		logger.Warn("login redirect failed", "error", err)
		return fmt.Errorf("login redirect: %w", err)
	}
	g.lastErr = ""
	return nil
}

// Message returns the user-visible status message, if any.
func (g *Guard) Message() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.message
}

// LastError returns the last redirect failure, or "".
func (g *Guard) LastError() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Diagnostics reports the current session state.
func (g *Guard) Diagnostics() Diagnostics {
	g.mu.Lock()
	lastErr := g.lastErr
	g.mu.Unlock()

	client := g.sc.Client()
	d := Diagnostics{
		RedirectTarget:  g.opts.RedirectURI,
		SecureContext:   identity.IsSecureContext(g.opts.RedirectURI),
		CachedAccounts:  len(client.GetAllAccounts()),
		AttemptedFlag:   g.sc.AttemptedFlag(),
		LoginHint:       g.sc.LoginHint(),
		InProgress:      client.InteractionInProgress(),
		StorageDegraded: g.sc.Degraded(),
		LastError:       lastErr,
	}
	if u, err := url.Parse(g.opts.RedirectURI); err == nil && u.Host != "" {
		d.Origin = u.Scheme + "://" + u.Host
	}
	return d
}
