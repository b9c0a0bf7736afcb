package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/identity/identitytest"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/storage"
)

var (
	alice = models.Account{HomeAccountID: "a.t", Username: "alice@example.com"}
	bob   = models.Account{HomeAccountID: "b.t", Username: "bob@example.com"}
)

func newContext(fake *identitytest.Fake) *Context {
	return NewContext(fake, storage.NewMemory(), storage.NewMemory())
}

func TestContext_FlagAndHint(t *testing.T) {
	sc := newContext(identitytest.NewFake())

	assert.False(t, sc.AttemptedFlag())
	sc.SetAttemptedFlag()
	assert.True(t, sc.AttemptedFlag())
	sc.ClearAttemptedFlag()
	assert.False(t, sc.AttemptedFlag())

	assert.Equal(t, "", sc.LoginHint())
	sc.SetLoginHint("  ")
	assert.Equal(t, "", sc.LoginHint())
	sc.SetLoginHint("alice@example.com")
	assert.Equal(t, "alice@example.com", sc.LoginHint())
	sc.ClearLoginHint()
	assert.Equal(t, "", sc.LoginHint())
}

func TestContext_UnavailableStorage(t *testing.T) {
	sc := NewContext(identitytest.NewFake(), storage.Unavailable{}, storage.Unavailable{})

	sc.SetAttemptedFlag()
	sc.SetLoginHint("alice@example.com")
	assert.True(t, sc.AttemptedFlag())
	assert.Equal(t, "alice@example.com", sc.LoginHint())
	assert.True(t, sc.Degraded())
}

func TestContext_HandleEvent(t *testing.T) {
	fake := identitytest.NewFake()
	sc := newContext(fake)
	detach := sc.Attach()

	fake.Emit(identity.Event{Type: identity.EventLoginSuccess, Account: &alice})
	require.NotNil(t, sc.ActiveAccount())
	assert.Equal(t, alice.HomeAccountID, sc.ActiveAccount().HomeAccountID)
	assert.Equal(t, alice.Username, sc.LoginHint())

	fake.Emit(identity.Event{Type: identity.EventAcquireTokenSuccess, Account: &bob})
	assert.Equal(t, bob.HomeAccountID, sc.ActiveAccount().HomeAccountID)
	assert.Equal(t, bob.Username, sc.LoginHint())

	fake.Emit(identity.Event{Type: identity.EventSSOSilentSuccess, Account: &alice})
	assert.Equal(t, bob.HomeAccountID, sc.ActiveAccount().HomeAccountID)

	detach()
	fake.Emit(identity.Event{Type: identity.EventLoginSuccess, Account: &alice})
	assert.Equal(t, bob.HomeAccountID, sc.ActiveAccount().HomeAccountID)
}

func TestBootstrap_RedirectResponse(t *testing.T) {
	fake := identitytest.NewFake(bob)
	fake.RedirectFn = func(string) (*identity.AuthResult, error) {
		return &identity.AuthResult{Account: &alice}, nil
	}
	sc := newContext(fake)

	outcome, err := NewBootstrapper(sc, "http://localhost:8400/?code=c&state=s", nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, outcome)
	assert.Equal(t, alice.HomeAccountID, sc.ActiveAccount().HomeAccountID)
	assert.Zero(t, fake.CallCount("SSOSilent"))
}

func TestBootstrap_RequestCacheMissFallsThrough(t *testing.T) {
	fake := identitytest.NewFake(bob)
	fake.RedirectFn = func(string) (*identity.AuthResult, error) {
		return nil, identity.NewAuthError(identity.CodeNoTokenRequestCache, "gone")
	}
	sc := newContext(fake)

	b := NewBootstrapper(sc, "http://localhost:8400/?tab=records&code=c&state=s#/detail", nil)
	outcome, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCachedAccount, outcome)
	assert.True(t, b.Stripped())
	assert.Equal(t, "http://localhost:8400/?tab=records#/detail", b.Location())
	assert.Equal(t, bob.HomeAccountID, sc.ActiveAccount().HomeAccountID)
}

func TestBootstrap_OtherRedirectErrorIsFatal(t *testing.T) {
	fake := identitytest.NewFake(bob)
	fake.RedirectFn = func(string) (*identity.AuthResult, error) {
		return nil, identity.NewAuthError("access_denied", "user cancelled")
	}

	outcome, err := NewBootstrapper(newContext(fake), "", nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "access_denied", identity.ErrorCode(err))
	assert.Equal(t, OutcomeNoAccount, outcome)
	assert.Zero(t, fake.CallCount("SetActiveAccount"))
}

func TestBootstrap_InitializeFailure(t *testing.T) {
	fake := identitytest.NewFake()
	fake.InitErr = errors.New("discovery failed")

	_, err := NewBootstrapper(newContext(fake), "", nil).Run(context.Background())
	assert.ErrorIs(t, err, fake.InitErr)
	assert.Zero(t, fake.CallCount("HandleRedirectPromise"))
}

func TestBootstrap_CachedAccountPicksFirst(t *testing.T) {
	fake := identitytest.NewFake(alice, bob)
	sc := newContext(fake)
	sc.SetLoginHint("bob@example.com")

	outcome, err := NewBootstrapper(sc, "", nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCachedAccount, outcome)
	assert.Equal(t, alice.HomeAccountID, sc.ActiveAccount().HomeAccountID)
	assert.Zero(t, fake.CallCount("SSOSilent"))
}

func TestBootstrap_SSOWithHint(t *testing.T) {
	fake := identitytest.NewFake()
	fake.SSOFn = func(req identity.SSORequest) (*identity.AuthResult, error) {
		assert.Equal(t, "alice@example.com", req.LoginHint)
		assert.Equal(t, []string{"User.Read"}, req.Scopes)
		return &identity.AuthResult{Account: &alice}, nil
	}
	sc := newContext(fake)
	sc.SetLoginHint("alice@example.com")

	outcome, err := NewBootstrapper(sc, "", []string{"User.Read"}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSSO, outcome)
	assert.True(t, outcome.HasAccount())
	assert.Equal(t, alice.HomeAccountID, sc.ActiveAccount().HomeAccountID)
}

func TestBootstrap_SSOInteractionRequired(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"Typed", identity.NewInteractionRequired(identity.CodeNoTokensFound, "")},
		{"LoginRequired", identity.NewAuthError(identity.CodeLoginRequired, "")},
		{"InteractionRequired", identity.NewAuthError(identity.CodeInteractionRequired, "")},
		{"ConsentRequired", identity.NewAuthError(identity.CodeConsentRequired, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := identitytest.NewFake()
			fake.SSOFn = func(identity.SSORequest) (*identity.AuthResult, error) { return nil, tt.err }
			sc := newContext(fake)
			sc.SetLoginHint("alice@example.com")

			outcome, err := NewBootstrapper(sc, "", nil).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeNoAccount, outcome)
			assert.Nil(t, sc.ActiveAccount())
		})
	}
}

func TestBootstrap_SSOUnexpectedErrorIsFatal(t *testing.T) {
	boom := errors.New("tls handshake failed")
	fake := identitytest.NewFake()
	fake.SSOFn = func(identity.SSORequest) (*identity.AuthResult, error) { return nil, boom }
	sc := newContext(fake)
	sc.SetLoginHint("alice@example.com")

	_, err := NewBootstrapper(sc, "", nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestBootstrap_NoHint(t *testing.T) {
	fake := identitytest.NewFake()
	outcome, err := NewBootstrapper(newContext(fake), "", nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoAccount, outcome)
	assert.Zero(t, fake.CallCount("SSOSilent"))
}

func TestBootstrap_RunsOnce(t *testing.T) {
	fake := identitytest.NewFake(alice)
	b := NewBootstrapper(newContext(fake), "", nil)

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = b.Run(context.Background())
		}(i)
	}
	wg.Wait()

	for _, o := range outcomes {
		assert.Equal(t, OutcomeCachedAccount, o)
	}
	again, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCachedAccount, again)
	assert.Equal(t, 1, fake.CallCount("Initialize"))
	assert.Equal(t, 1, fake.CallCount("HandleRedirectPromise"))
}

func TestStripAuthParams(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8400/?code=a&state=b", "http://localhost:8400/"},
		{"http://localhost:8400/?code=a&state=b&tab=records", "http://localhost:8400/?tab=records"},
		{"http://localhost:8400/?tab=records&code=a&client_info=x", "http://localhost:8400/?tab=records"},
		{"http://localhost:8400/?Error=x&Error_Description=y", "http://localhost:8400/"},
		{"http://localhost:8400/#code=a&state=b", "http://localhost:8400/"},
		{"http://localhost:8400/#/records?code=a&state=b", "http://localhost:8400/#/records"},
		{"http://localhost:8400/#tab=1&code=a", "http://localhost:8400/#tab=1"},
		{"http://localhost:8400/?x=1#/detail", "http://localhost:8400/?x=1#/detail"},
		{"http://localhost:8400/?statement=1", "http://localhost:8400/?statement=1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripAuthParams(tt.in))
		})
	}
}

func TestHasAuthParams(t *testing.T) {
	assert.True(t, HasAuthParams("http://localhost:8400/?code=a"))
	assert.True(t, HasAuthParams("http://localhost:8400/#state=a"))
	assert.True(t, HasAuthParams("http://localhost:8400/?x=1&error=a"))
	assert.False(t, HasAuthParams("http://localhost:8400/?statement=1"))
	assert.False(t, HasAuthParams("http://localhost:8400/#/records"))
}

func TestNewContextFromSafe_SharesStores(t *testing.T) {
	sess := storage.NewSafe("session", storage.NewMemory())
	sc := NewContextFromSafe(identitytest.NewFake(), storage.NewSafe("local", storage.NewMemory()), sess)

	sc.SetAttemptedFlag()
	v, ok := sess.Get(AttemptedFlagKey)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Same(t, sess, sc.Session())
}
