package info

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/audit-dashboard-tui/internal/app"
	"github.com/j-veylop/audit-dashboard-tui/internal/config"
	"github.com/j-veylop/audit-dashboard-tui/internal/identity/identitytest"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/services"
	"github.com/j-veylop/audit-dashboard-tui/internal/services/records"
)

func newManager(t *testing.T) *services.Manager {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := &config.Config{
		ClientID:     "client-123",
		Authority:    "https://login.example.com/tenant/v2.0",
		RedirectURI:  "http://localhost:8400/",
		LoginScopes:  []string{"User.Read"},
		ListScopes:   []string{"Sites.Read.All"},
		GraphBaseURL: "http://127.0.0.1:1",
		SiteHostname: "contoso.sharepoint.com",
		SitePath:     "sites/Audit",
		ListID:       "list-1",
		FieldMapPath: filepath.Join(tmpDir, "fieldmap.json"),
		SessionID:    "info-session",
		DatabasePath: filepath.Join(tmpDir, "test.db"),
		PageSize:     200,
		MaxPages:     5,
	}
	mgr, err := services.NewManager(cfg, services.WithIdentityClient(identitytest.NewFake()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestModel_ViewWithoutServices(t *testing.T) {
	m := New(app.NewState(), nil)
	m.SetSize(100, 80)

	view := m.View()
	for _, want := range []string{"Configuration not loaded", "signed out", "not loaded", "audit-dashboard-tui"} {
		if !strings.Contains(view, want) {
			t.Errorf("View should contain %q", want)
		}
	}
}

func TestModel_ViewWithSession(t *testing.T) {
	state := app.NewState()
	state.SetAccount(&models.Account{HomeAccountID: "a.t", Username: "alice@example.com", Name: "Alice"})
	state.SetRecords(&records.Result{
		FetchedAt:     time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Site:          &records.Site{ID: "s1", DisplayName: "Plant Audits"},
		Items:         make([]models.RawListItem, 4),
		GrantedScopes: []string{"Sites.Read.All"},
		Truncated:     true,
	})

	m := New(state, newManager(t))
	m.SetSize(110, 100)

	view := m.View()
	for _, want := range []string{
		"client-123", "contoso.sharepoint.com/sites/Audit", "info-session",
		"Alice (alice@example.com)", "Plant Audits", "truncated", "2026-03-10 09:30:00",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View should contain %q", want)
		}
	}
}

func TestModel_Copy(t *testing.T) {
	orig := writeClipboard
	t.Cleanup(func() { writeClipboard = orig })

	var copied string
	writeClipboard = func(text string) error {
		copied = text
		return nil
	}

	mgr := newManager(t)
	m := New(app.NewState(), mgr)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd == nil {
		t.Fatal("c should copy the field map path")
	}
	msg, ok := cmd().(app.AddNotificationMsg)
	if !ok || msg.Type != app.NotificationSuccess {
		t.Errorf("copy result = %#v", msg)
	}
	if copied != mgr.Config().FieldMapPath {
		t.Errorf("copied %q", copied)
	}

	writeClipboard = func(string) error { return errors.New("no clipboard") }
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if msg := cmd().(app.AddNotificationMsg); msg.Type != app.NotificationError {
		t.Error("a failed copy should report an error")
	}
}

func TestModel_CopyWithoutServices(t *testing.T) {
	m := New(app.NewState(), nil)
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}}); cmd != nil {
		t.Error("nothing to copy without configuration")
	}
}

func TestModel_Basics(t *testing.T) {
	m := New(app.NewState(), nil)
	if m.Init() != nil {
		t.Error("Init should not start any command")
	}
	if updated, _ := m.Update(nil); updated == nil {
		t.Error("Update returned nil model")
	}
	if len(m.ShortHelp()) != 1 || len(m.FullHelp()) != 2 {
		t.Error("unexpected help bindings")
	}
}
