// Package session holds the process-wide authentication session: the login
// attempt flag, the login hint and the active account, plus the bootstrap
// that establishes them once per run.
package session

import (
	"strings"

	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/storage"
)

// Storage keys.
const (
	// AttemptedFlagKey lives in session storage and marks that an automatic
	// interactive login was already issued in this terminal session.
	AttemptedFlagKey = "adt:auto_login_attempted"

	// LoginHintKey lives in local storage and holds the last username.
	LoginHintKey = "adt:login_hint"
)

// Context is created once at startup and shared by every component that
// reads or writes session state. Its accessors never fail.
type Context struct {
	local   *storage.Safe
	session *storage.Safe
	client  identity.Client
}

// NewContext wraps the durable and session-scoped stores.
func NewContext(client identity.Client, local, session storage.Store) *Context {
	return NewContextFromSafe(client, storage.NewSafe("local", local), storage.NewSafe("session", session))
}

// NewContextFromSafe uses already wrapped stores, so the identity client's
// request cache and the session state share one fallback.
func NewContextFromSafe(client identity.Client, local, session *storage.Safe) *Context {
	return &Context{client: client, local: local, session: session}
}

// Client returns the identity client.
func (c *Context) Client() identity.Client { return c.client }

// Local returns the durable store.
func (c *Context) Local() *storage.Safe { return c.local }

// Session returns the session-scoped store.
func (c *Context) Session() *storage.Safe { return c.session }

// Degraded reports whether either store fell back to memory.
func (c *Context) Degraded() bool {
	return c.local.Degraded() || c.session.Degraded()
}

// AttemptedFlag reports whether an automatic login was already attempted.
func (c *Context) AttemptedFlag() bool {
	v, ok := c.session.Get(AttemptedFlagKey)
	return ok && v == "1"
}

// SetAttemptedFlag marks the automatic login as attempted.
func (c *Context) SetAttemptedFlag() { c.session.Set(AttemptedFlagKey, "1") }

// ClearAttemptedFlag clears the attempt marker.
func (c *Context) ClearAttemptedFlag() { c.session.Remove(AttemptedFlagKey) }

// LoginHint returns the stored username, or "".
func (c *Context) LoginHint() string {
	v, _ := c.local.Get(LoginHintKey)
	return strings.TrimSpace(v)
}

// SetLoginHint stores the username. Blank values are ignored.
func (c *Context) SetLoginHint(username string) {
	if username = strings.TrimSpace(username); username != "" {
		c.local.Set(LoginHintKey, username)
	}
}

// ClearLoginHint removes the stored username.
func (c *Context) ClearLoginHint() { c.local.Remove(LoginHintKey) }

// ActiveAccount returns the active account, or nil.
func (c *Context) ActiveAccount() *models.Account {
	return c.client.GetActiveAccount()
}

// Activate makes account the active account.
func (c *Context) Activate(account *models.Account) {
	c.client.SetActiveAccount(account)
}

// Deactivate clears the active account.
func (c *Context) Deactivate() {
	c.client.SetActiveAccount(nil)
}

// HandleEvent reacts to identity client events: successful logins and token
// acquisitions activate the account and remember its username.
func (c *Context) HandleEvent(evt identity.Event) {
	switch evt.Type {
	case identity.EventLoginSuccess, identity.EventAcquireTokenSuccess:
		if evt.Account == nil {
			return
		}
		c.Activate(evt.Account)
		c.SetLoginHint(evt.Account.Username)
		logger.Debug("account activated", "event", evt.Type.String(), "account", evt.Account.HomeAccountID)
	case identity.EventLoginFailure:
		logger.Warn("login failed", "error", evt.Err)
	}
}

// Attach subscribes HandleEvent to the client's events.
func (c *Context) Attach() (detach func()) {
	return c.client.AddEventCallback(c.HandleEvent)
}
