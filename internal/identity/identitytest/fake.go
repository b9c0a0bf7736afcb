// Package identitytest provides an in-memory identity.Client for tests.
package identitytest

import (
	"context"
	"sync"

	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// Fake is a scriptable identity.Client. Zero-value function fields fall back
// to defaults: no redirect response, no SSO session, redirects succeed.
type Fake struct {
	mu sync.Mutex

	InitErr     error
	RedirectFn  func(location string) (*identity.AuthResult, error)
	SilentFn    func(req identity.TokenRequest) (*identity.AuthResult, error)
	SSOFn       func(req identity.SSORequest) (*identity.AuthResult, error)
	LoginErr    error
	AcquireErr  error
	LogoutErr   error
	Accounts    []models.Account
	Active      *models.Account
	InProgress  bool
	callbacks   map[int]func(identity.Event)
	nextID      int
	Calls       []string
	Logins      []identity.LoginRequest
	Acquires    []identity.TokenRequest
	SSORequests []identity.SSORequest
	Locations   []string
}

// NewFake returns a Fake with the given cached accounts.
func NewFake(accounts ...models.Account) *Fake {
	return &Fake{Accounts: accounts}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

// CallCount counts calls of the named method.
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// Initialize implements identity.Client.
func (f *Fake) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Initialize")
	return f.InitErr
}

// HandleRedirectPromise implements identity.Client.
func (f *Fake) HandleRedirectPromise(_ context.Context, location string) (*identity.AuthResult, error) {
	f.mu.Lock()
	f.record("HandleRedirectPromise")
	f.Locations = append(f.Locations, location)
	fn := f.RedirectFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(location)
}

// AcquireTokenSilent implements identity.Client.
func (f *Fake) AcquireTokenSilent(_ context.Context, req identity.TokenRequest) (*identity.AuthResult, error) {
	f.mu.Lock()
	f.record("AcquireTokenSilent")
	fn := f.SilentFn
	f.mu.Unlock()
	if fn == nil {
		return nil, identity.NewInteractionRequired(identity.CodeNoTokensFound, "")
	}
	return fn(req)
}

// AcquireTokenRedirect implements identity.Client.
func (f *Fake) AcquireTokenRedirect(_ context.Context, req identity.TokenRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AcquireTokenRedirect")
	f.Acquires = append(f.Acquires, req)
	if f.AcquireErr == nil {
		f.InProgress = true
	}
	return f.AcquireErr
}

// LoginRedirect implements identity.Client.
func (f *Fake) LoginRedirect(_ context.Context, req identity.LoginRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LoginRedirect")
	f.Logins = append(f.Logins, req)
	if f.LoginErr == nil {
		f.InProgress = true
	}
	return f.LoginErr
}

// LogoutRedirect implements identity.Client.
func (f *Fake) LogoutRedirect(_ context.Context, account *models.Account) error {
	f.mu.Lock()
	f.record("LogoutRedirect")
	if f.LogoutErr != nil {
		err := f.LogoutErr
		f.mu.Unlock()
		return err
	}
	f.Active = nil
	f.Accounts = nil
	f.mu.Unlock()
	f.Emit(identity.Event{Type: identity.EventLogoutSuccess, Account: account})
	return nil
}

// SSOSilent implements identity.Client.
func (f *Fake) SSOSilent(_ context.Context, req identity.SSORequest) (*identity.AuthResult, error) {
	f.mu.Lock()
	f.record("SSOSilent")
	f.SSORequests = append(f.SSORequests, req)
	fn := f.SSOFn
	f.mu.Unlock()
	if fn == nil {
		return nil, identity.NewInteractionRequired(identity.CodeLoginRequired, "")
	}
	return fn(req)
}

// GetAllAccounts implements identity.Client.
func (f *Fake) GetAllAccounts() []models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Account, len(f.Accounts))
	copy(out, f.Accounts)
	return out
}

// GetActiveAccount implements identity.Client.
func (f *Fake) GetActiveAccount() *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Active == nil {
		return nil
	}
	acc := f.Active.Clone()
	return &acc
}

// SetActiveAccount implements identity.Client.
func (f *Fake) SetActiveAccount(account *models.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetActiveAccount")
	if account == nil {
		f.Active = nil
		return
	}
	acc := account.Clone()
	f.Active = &acc
}

// InteractionInProgress implements identity.Client.
func (f *Fake) InteractionInProgress() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.InProgress
}

// AddEventCallback implements identity.Client.
func (f *Fake) AddEventCallback(fn func(identity.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callbacks == nil {
		f.callbacks = make(map[int]func(identity.Event))
	}
	id := f.nextID
	f.nextID++
	f.callbacks[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.callbacks, id)
	}
}

// Emit delivers evt to every registered callback.
func (f *Fake) Emit(evt identity.Event) {
	f.mu.Lock()
	fns := make([]func(identity.Event), 0, len(f.callbacks))
	for _, fn := range f.callbacks {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

var _ identity.Client = (*Fake)(nil)
