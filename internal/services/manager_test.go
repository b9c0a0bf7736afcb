package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/config"
	"github.com/j-veylop/audit-dashboard-tui/internal/db"
	"github.com/j-veylop/audit-dashboard-tui/internal/gateway"
	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/identity/identitytest"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/session"
)

var alice = models.Account{HomeAccountID: "a.t", Username: "alice@example.com"}

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

// fakeList serves a site and one page of items whose plan dates are set by
// the test.
type fakeList struct {
	mu        sync.Mutex
	planDates []string
}

func (f *fakeList) setPlanDates(dates ...string) {
	f.mu.Lock()
	f.planDates = dates
	f.mu.Unlock()
}

func (f *fakeList) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/items") {
		f.mu.Lock()
		items := make([]map[string]any, len(f.planDates))
		for i, d := range f.planDates {
			items[i] = map[string]any{
				"id": string(rune('1' + i)),
				"fields": map[string]any{
					"Title":                            "Finding",
					"Follow_x0020_Up_x0020_Plan_x0020": d,
				},
			}
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"value": items})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"id": "site-1"})
}

func testConfig(t *testing.T, graphURL string) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	return &config.Config{
		ClientID:         "client",
		Authority:        "https://login.example.com/tenant/v2.0",
		RedirectURI:      "http://localhost:8400/",
		LoginScopes:      []string{"User.Read"},
		ListScopes:       []string{"Sites.Read.All"},
		GraphBaseURL:     graphURL,
		SiteHostname:     "contoso.sharepoint.com",
		SitePath:         "sites/Audit",
		ListID:           "list-1",
		FieldMapPath:     filepath.Join(tmpDir, "fieldmap.json"),
		SessionID:        "test-session",
		DatabasePath:     filepath.Join(tmpDir, "test.db"),
		PageSize:         200,
		MaxPages:         5,
		SessionRetention: time.Hour,
	}
}

func newTestManager(t *testing.T, fake *identitytest.Fake, graphURL string) (*Manager, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	mgr, err := NewManager(testConfig(t, graphURL),
		WithIdentityClient(fake),
		WithNotifier(notifier),
		WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() {
		if err := mgr.Close(); err != nil {
			t.Logf("Close failed: %v", err)
		}
	})
	return mgr, notifier
}

func signedInFake() *identitytest.Fake {
	fake := identitytest.NewFake(alice)
	fake.SilentFn = func(req identity.TokenRequest) (*identity.AuthResult, error) {
		return &identity.AuthResult{Account: req.Account, AccessToken: "tok", Scopes: req.Scopes}, nil
	}
	return fake
}

func waitForEvent[T ServiceEvent](t *testing.T, ch <-chan ServiceEvent) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-ch:
			if v, ok := e.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting for %T", zero)
			return zero
		}
	}
}

func TestNewManager(t *testing.T) {
	mgr, _ := newTestManager(t, identitytest.NewFake(), "")

	if mgr.Database() == nil {
		t.Error("Database should be initialized")
	}
	if mgr.Records() == nil {
		t.Error("Records service should be initialized")
	}
	if mgr.Session() == nil || mgr.Client() == nil {
		t.Error("Session context and identity client should be initialized")
	}
	if mgr.SessionID() != "test-session" {
		t.Errorf("SessionID() = %q, want test-session", mgr.SessionID())
	}
	if _, err := os.Stat(mgr.FieldMap().Path()); err != nil {
		t.Errorf("field map file was not created: %v", err)
	}
	if mgr.InitialLocation() != mgr.Config().RedirectURI {
		t.Errorf("InitialLocation() = %q", mgr.InitialLocation())
	}
}

func TestNewManager_OIDCClient(t *testing.T) {
	cfg := testConfig(t, "")
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	if _, ok := mgr.Client().(*identity.OIDCClient); !ok {
		t.Errorf("Client() = %T, want *identity.OIDCClient", mgr.Client())
	}
	if mgr.loopback == nil {
		t.Error("loopback redirect URI should get a loopback navigator")
	}
}

func TestNewManager_InvalidIdentityConfig(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.ClientID = ""

	if _, err := NewManager(cfg); err == nil {
		t.Error("NewManager should fail without a client id")
	}
}

func TestManager_Bootstrap(t *testing.T) {
	fake := identitytest.NewFake(alice)
	mgr, _ := newTestManager(t, fake, "")

	b, outcome, err := mgr.Bootstrap(context.Background(), "")
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if outcome != session.OutcomeCachedAccount {
		t.Errorf("outcome = %v, want cached_account", outcome)
	}
	if b.Location() != mgr.InitialLocation() {
		t.Errorf("Location() = %q, want initial location", b.Location())
	}
	if got := fake.Locations; len(got) != 1 || got[0] != mgr.InitialLocation() {
		t.Errorf("HandleRedirectPromise locations = %v", got)
	}
	if mgr.Session().ActiveAccount() == nil {
		t.Error("account should be active after bootstrap")
	}
}

func TestManager_NewGuard(t *testing.T) {
	fake := identitytest.NewFake()
	mgr, _ := newTestManager(t, fake, "")

	g := mgr.NewGuard()
	if _, err := g.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(fake.Logins) != 1 || fake.Logins[0].Scopes[0] != "User.Read" {
		t.Errorf("logins = %+v, want one with login scopes", fake.Logins)
	}
	if g.Diagnostics().RedirectTarget != mgr.Config().RedirectURI {
		t.Error("guard should report the configured redirect target")
	}
}

func TestManager_LoadRecords_NotifiesWhenOverdueGrows(t *testing.T) {
	list := &fakeList{}
	srv := httptest.NewServer(list)
	defer srv.Close()

	fake := signedInFake()
	mgr, notifier := newTestManager(t, fake, srv.URL)
	mgr.Session().Activate(&alice)

	list.setPlanDates("2026-01-01", "2027-01-01")
	res, err := mgr.LoadRecords(context.Background())
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if notifier.count() != 0 {
		t.Error("first load should not notify")
	}

	list.setPlanDates("2026-01-01", "2026-02-01")
	if _, err := mgr.LoadRecords(context.Background()); err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}

	if _, err := mgr.LoadRecords(context.Background()); err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Error("unchanged overdue count should not notify again")
	}
}

func TestManager_LoadRecords_NoAccount(t *testing.T) {
	mgr, _ := newTestManager(t, signedInFake(), "")

	if _, err := mgr.LoadRecords(context.Background()); err == nil {
		t.Error("LoadRecords should fail without an active account")
	}
}

func TestNewManager_PrunesStaleSessions(t *testing.T) {
	cfg := testConfig(t, "")

	seed, err := db.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	if _, err := seed.Exec(
		"INSERT INTO session_storage (session_id, key, value, updated_at) VALUES ('old', 'k', 'v', 0)"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	_ = seed.Close()

	mgr, err := NewManager(cfg, WithIdentityClient(identitytest.NewFake()), WithNotifier(&recordingNotifier{}))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	if _, err := mgr.Database().GetSession("old", "k"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("stale session value survived: err = %v", err)
	}
}

func TestManager_LoadRecords_WithoutRedirect(t *testing.T) {
	fake := identitytest.NewFake(alice)
	mgr, _ := newTestManager(t, fake, "")
	mgr.Session().Activate(&alice)

	_, err := mgr.LoadRecords(context.Background(), gateway.WithoutRedirect())
	if !identity.IsInteractionRequired(err) {
		t.Fatalf("err = %v, want interaction required", err)
	}
	if n := fake.CallCount("AcquireTokenRedirect"); n != 0 {
		t.Errorf("AcquireTokenRedirect calls = %d, want 0", n)
	}
	if mgr.Records().ResumePending() {
		t.Error("a headless load must not leave a resume marker")
	}
}

func TestManager_Logout(t *testing.T) {
	fake := identitytest.NewFake(alice)
	mgr, _ := newTestManager(t, fake, "")

	if err := mgr.Logout(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Logout() = %v, want ErrNotSignedIn", err)
	}

	mgr.Session().Activate(&alice)
	mgr.Session().SetLoginHint(alice.Username)
	if err := mgr.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if fake.CallCount("LogoutRedirect") != 1 {
		t.Error("LogoutRedirect should be called once")
	}
	if mgr.Session().LoginHint() != "" {
		t.Error("login hint should be cleared")
	}
	if mgr.Session().ActiveAccount() != nil {
		t.Error("account should be inactive")
	}
}

func TestManager_LogoutError(t *testing.T) {
	fake := identitytest.NewFake(alice)
	fake.LogoutErr = errors.New("browser unavailable")
	mgr, _ := newTestManager(t, fake, "")
	mgr.Session().Activate(&alice)

	if err := mgr.Logout(context.Background()); err == nil || !strings.Contains(err.Error(), "browser unavailable") {
		t.Errorf("Logout() = %v, want wrapped navigation error", err)
	}
}

func TestManager_IdentityEvents(t *testing.T) {
	fake := identitytest.NewFake()
	mgr, notifier := newTestManager(t, fake, "")

	ch, _ := mgr.Subscribe()

	fake.Emit(identity.Event{Type: identity.EventLoginSuccess, Account: &alice})
	evt := waitForEvent[IdentityEvent](t, ch)
	if evt.Type != identity.EventLoginSuccess || evt.Account.Username != alice.Username {
		t.Errorf("event = %+v", evt)
	}
	if mgr.Session().LoginHint() != alice.Username {
		t.Error("session context should record the login hint")
	}

	fake.Emit(identity.Event{Type: identity.EventLoginFailure, Err: identity.NewAuthError("access_denied", "")})
	evt = waitForEvent[IdentityEvent](t, ch)
	if evt.Type != identity.EventLoginFailure {
		t.Errorf("event type = %v, want login failure", evt.Type)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestManager_FieldMapChanged(t *testing.T) {
	mgr, _ := newTestManager(t, identitytest.NewFake(), "")
	ch, _ := mgr.Subscribe()

	if err := os.WriteFile(mgr.FieldMap().Path(), []byte(`{"Area": "Zone"}`), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	waitForEvent[FieldMapChangedEvent](t, ch)
	if got := mgr.FieldMap().Current()[models.FieldArea]; len(got) != 1 || got[0] != "Zone" {
		t.Errorf("Area aliases = %v, want [Zone]", got)
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr, _ := newTestManager(t, identitytest.NewFake(), "")

	ch, cmd := mgr.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe returned nil channel")
	}
	if cmd == nil {
		t.Error("Subscribe returned nil command")
	}

	mgr.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Channel should be closed")
		}
	case <-time.After(time.Second):
		t.Error("Unsubscribe should close the channel")
	}
}

func TestManager_Broadcast(t *testing.T) {
	mgr, _ := newTestManager(t, identitytest.NewFake(), "")

	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	event := CallbackEvent{Location: "http://localhost:8400/?code=x&state=y"}
	mgr.broadcast(event)

	select {
	case e := <-ch:
		if e != event {
			t.Errorf("Got event %v, want %v", e, event)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestManager_Forget(t *testing.T) {
	mgr, _ := newTestManager(t, identitytest.NewFake(alice), "")

	// The fake has no cache to clear.
	if err := mgr.Forget(); err != nil {
		t.Errorf("Forget() = %v", err)
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	mgr, err := NewManager(testConfig(t, ""), WithIdentityClient(identitytest.NewFake()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- FieldMapChangedEvent{}

	cmd := WaitForEvent(ch)
	if _, ok := cmd().(FieldMapChangedEvent); !ok {
		t.Error("WaitForEvent cmd returned the wrong message")
	}
}

func TestServiceEvent_Interface(t *testing.T) {
	var _ ServiceEvent = IdentityEvent{}
	var _ ServiceEvent = CallbackEvent{}
	var _ ServiceEvent = FieldMapChangedEvent{}
	var _ ServiceEvent = ErrorEvent{}
}
