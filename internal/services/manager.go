// Package services provides service orchestration for the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/config"
	"github.com/j-veylop/audit-dashboard-tui/internal/db"
	"github.com/j-veylop/audit-dashboard-tui/internal/gateway"
	"github.com/j-veylop/audit-dashboard-tui/internal/guard"
	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/services/fieldmap"
	"github.com/j-veylop/audit-dashboard-tui/internal/services/records"
	"github.com/j-veylop/audit-dashboard-tui/internal/session"
	"github.com/j-veylop/audit-dashboard-tui/internal/storage"
)

type (
	// IdentityEvent is emitted for every identity client event.
	IdentityEvent struct {
		Account *models.Account
		Err     error
		Type    identity.EventType
	}

	// CallbackEvent is emitted when the browser delivers an authorization
	// response. Location is the full response URL.
	CallbackEvent struct {
		Location string
	}

	// FieldMapChangedEvent is emitted after the field map file was reloaded.
	FieldMapChangedEvent struct{}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (IdentityEvent) isServiceEvent()        {}
func (CallbackEvent) isServiceEvent()        {}
func (FieldMapChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()           {}

// ErrNotSignedIn is returned by operations that need an active account.
var ErrNotSignedIn = errors.New("not signed in")

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(title, message string) error
}

type beeepNotifier struct{}

func (beeepNotifier) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

type silentNotifier struct{}

func (silentNotifier) Notify(string, string) error { return nil }

// Option customizes a Manager.
type Option func(*options)

type options struct {
	client    identity.Client
	graphHTTP *http.Client
	notifier  Notifier
	now       func() time.Time
}

// WithIdentityClient replaces the OIDC client.
func WithIdentityClient(c identity.Client) Option {
	return func(o *options) { o.client = c }
}

// WithGraphHTTPClient sets the HTTP client of the record source.
func WithGraphHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.graphHTTP = hc }
}

// WithNotifier replaces desktop notifications.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	database    *db.DB
	sessionID   string
	sc          *session.Context
	client      identity.Client
	loopback    *identity.LoopbackNavigator
	gateway     *gateway.Gateway
	records     *records.Service
	fieldMap    *fieldmap.Service
	notifier    Notifier
	now         func() time.Time
	detach      []func()
	eventChan   chan ServiceEvent
	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent
	lastOverdue int
	closeOnce   sync.Once
}

// NewManager opens storage and builds every service. Failing to construct
// the identity client is fatal.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.notifier != nil:
	case cfg.Notify:
		o.notifier = beeepNotifier{}
	default:
		o.notifier = silentNotifier{}
	}

	m := &Manager{
		cfg:         cfg,
		notifier:    o.notifier,
		now:         o.now,
		eventChan:   make(chan ServiceEvent, 100),
		stopChan:    make(chan struct{}),
		lastOverdue: -1,
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.SessionRetention > 0 {
		if n, err := m.database.PruneSessions(cfg.SessionRetention); err != nil {
			logger.Warn("session prune failed", "error", err)
		} else if n > 0 {
			logger.Debug("pruned stale session values", "rows", n)
			if err := m.database.Vacuum(); err != nil {
				logger.Warn("vacuum failed", "error", err)
			}
		}
	}

	m.sessionID = storage.ResolveSessionID(cfg.SessionID)
	local := storage.NewSafe("local", storage.NewLocal(m.database))
	sess := storage.NewSafe("session", storage.NewSession(m.database, m.sessionID))

	m.client = o.client
	if m.client == nil {
		m.client, err = m.newOIDCClient(sess)
		if err != nil {
			_ = m.database.Close()
			return nil, err
		}
	}

	m.sc = session.NewContextFromSafe(m.client, local, sess)
	m.detach = append(m.detach, m.sc.Attach(), m.client.AddEventCallback(m.handleIdentityEvent))

	m.fieldMap, err = fieldmap.New(cfg.FieldMapPath)
	if err != nil {
		_ = m.closeServices()
		return nil, err
	}

	m.gateway = gateway.New(m.client, m.sc.Session())
	m.records = records.New(records.Config{
		Hostname: cfg.SiteHostname,
		SitePath: cfg.SitePath,
		ListID:   cfg.ListID,
		Scopes:   cfg.ListScopes,
		PageSize: cfg.PageSize,
		MaxPages: cfg.MaxPages,
	}, records.NewClient(cfg.GraphBaseURL, o.graphHTTP), m.gateway, m.sc.Session(), m.fieldMap)

	go m.routeEvents()

	return m, nil
}

func (m *Manager) newOIDCClient(requests *storage.Safe) (identity.Client, error) {
	var nav identity.Navigator = identity.BrowserNavigator{}
	if u, err := url.Parse(m.cfg.RedirectURI); err == nil && identity.IsLoopback(u) {
		lb, err := identity.NewLoopbackNavigator(m.cfg.RedirectURI)
		if err != nil {
			return nil, err
		}
		m.loopback = lb
		nav = lb
	}

	client, err := identity.NewOIDCClient(identity.Config{
		Authority:             m.cfg.Authority,
		ClientID:              m.cfg.ClientID,
		RedirectURI:           m.cfg.RedirectURI,
		PostLogoutRedirectURI: m.cfg.PostLogoutRedirectURI,
		Scopes:                m.cfg.LoginScopes,
	}, requests, m.database, identity.WithNavigator(nav))
	if err != nil {
		return nil, fmt.Errorf("failed to create identity client: %w", err)
	}
	return client, nil
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	var callbacks <-chan string
	if m.loopback != nil {
		callbacks = m.loopback.Callbacks()
	}

	for {
		select {
		case event := <-m.fieldMap.Events():
			m.handleFieldMapEvent(event)

		case location := <-callbacks:
			logger.Info("authorization response received")
			m.broadcast(CallbackEvent{Location: location})

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleFieldMapEvent(event fieldmap.Event) {
	switch event.Type {
	case fieldmap.EventChanged:
		m.broadcast(FieldMapChangedEvent{})
	case fieldmap.EventError:
		m.broadcast(ErrorEvent{Service: "fieldmap", Error: event.Error})
	}
}

func (m *Manager) handleIdentityEvent(evt identity.Event) {
	if evt.Type == identity.EventLoginFailure {
		m.notify("Sign-in failed", identity.ErrorCode(evt.Err))
	}
	m.broadcast(IdentityEvent{Type: evt.Type, Account: evt.Account, Err: evt.Err})
}

func (m *Manager) notify(title, body string) {
	if err := m.notifier.Notify(title, body); err != nil {
		logger.Debug("notification failed", "error", err)
	}
}

// checkNotifications alerts when the number of overdue follow-ups grew
// since the previous load of this run.
func (m *Manager) checkNotifications(rows []models.LogicalRow) {
	overdue := aggregate.OverdueCount(rows, m.now())

	m.mu.Lock()
	previous := m.lastOverdue
	m.lastOverdue = overdue
	m.mu.Unlock()

	if previous < 0 || overdue <= previous {
		return
	}
	m.notify("Overdue follow-ups", fmt.Sprintf("%d follow-ups are overdue (was %d)", overdue, previous))
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	select {
	case m.eventChan <- event:
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// InitialLocation is the location of a run that was not started by a
// redirect.
func (m *Manager) InitialLocation() string {
	return m.cfg.RedirectURI
}

// Bootstrap establishes the session for one run at location.
func (m *Manager) Bootstrap(ctx context.Context, location string) (*session.Bootstrapper, session.Outcome, error) {
	if location == "" {
		location = m.InitialLocation()
	}
	b := session.NewBootstrapper(m.sc, location, m.cfg.LoginScopes)
	outcome, err := b.Run(ctx)
	return b, outcome, err
}

// NewGuard creates the login guard of one run.
func (m *Manager) NewGuard() *guard.Guard {
	return guard.New(m.sc, guard.Options{RedirectURI: m.cfg.RedirectURI, Scopes: m.cfg.LoginScopes})
}

// LoadRecords fetches the list for the active account.
func (m *Manager) LoadRecords(ctx context.Context, opts ...gateway.Option) (*records.Result, error) {
	res, err := m.records.Load(ctx, m.sc.ActiveAccount(), opts...)
	if err != nil {
		return nil, err
	}
	m.checkNotifications(res.Rows)
	return res, nil
}

// Logout signs the active account out and forgets the login hint.
func (m *Manager) Logout(ctx context.Context) error {
	account := m.sc.ActiveAccount()
	if account == nil {
		return ErrNotSignedIn
	}
	m.sc.ClearLoginHint()
	m.sc.Deactivate()
	if err := m.client.LogoutRedirect(ctx, account); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Forget signs every cached account out without contacting the provider.
// Refresh tokens stay so silent sign-on can restore an account.
func (m *Manager) Forget() error {
	if c, ok := m.client.(interface{ ClearCache() error }); ok {
		return c.ClearCache()
	}
	return nil
}

// Session returns the session context.
func (m *Manager) Session() *session.Context { return m.sc }

// Client returns the identity client.
func (m *Manager) Client() identity.Client { return m.client }

// Records returns the records service.
func (m *Manager) Records() *records.Service { return m.records }

// FieldMap returns the field map service.
func (m *Manager) FieldMap() *fieldmap.Service { return m.fieldMap }

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB { return m.database }

// SessionID returns the session storage scope.
func (m *Manager) SessionID() string { return m.sessionID }

// Config returns the configuration.
func (m *Manager) Config() *config.Config { return m.cfg }

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopChan)

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		err = m.closeServices()
	})
	return err
}

func (m *Manager) closeServices() error {
	var errs []error

	for _, fn := range m.detach {
		fn()
	}
	m.detach = nil

	if m.fieldMap != nil {
		if err := m.fieldMap.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.loopback != nil {
		if err := m.loopback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
