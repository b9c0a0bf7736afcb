// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/audit-dashboard-tui/internal/gateway"
	"github.com/j-veylop/audit-dashboard-tui/internal/guard"
	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/services"
	"github.com/j-veylop/audit-dashboard-tui/internal/session"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabDashboard is the ID for the dashboard tab.
	TabDashboard TabID = iota
	// TabRecords is the ID for the records tab.
	TabRecords
	// TabFollowUps is the ID for the follow-ups tab.
	TabFollowUps
	// TabInfo is the ID for the info tab.
	TabInfo
)

// String returns the string representation of the TabID.
func (t TabID) String() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabRecords:
		return "Records"
	case TabFollowUps:
		return "Follow-ups"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// ErrInsecureContext is reported when the redirect URI is neither https nor
// a loopback http address. Sign-in cannot work there.
var ErrInsecureContext = errors.New("redirect URI is not a secure context")

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// InputCapturer is implemented by tabs with text inputs. While it reports
// true, only ctrl+c is handled globally.
type InputCapturer interface {
	CapturesInput() bool
}

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Tab1     key.Binding
	Tab2     key.Binding
	Tab3     key.Binding
	Tab4     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Refresh  key.Binding
	Logout   key.Binding
	Retry    key.Binding
	Reset    key.Binding
	Help     key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Escape   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Filter   key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	km := KeyMap{}
	km = setTabKeys(km)
	km = setActionKeys(km)
	km = setNavigationKeys(km)
	return km
}

func setTabKeys(k KeyMap) KeyMap {
	k.Tab1 = key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard"))
	k.Tab2 = key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "records"))
	k.Tab3 = key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "follow-ups"))
	k.Tab4 = key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "info"))
	k.NextTab = key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab/→", "next tab"))
	k.PrevTab = key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab/←", "prev tab"))
	return k
}

func setActionKeys(k KeyMap) KeyMap {
	k.Refresh = key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "load records"))
	k.Logout = key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "sign out"))
	k.Retry = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry sign-in"))
	k.Reset = key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset session"))
	k.Help = key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help"))
	k.Quit = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
	return k
}

func setNavigationKeys(k KeyMap) KeyMap {
	k.Up = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
	k.Down = key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
	k.Enter = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	k.Escape = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	k.PageUp = key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up"))
	k.PageDown = key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down"))
	k.Filter = key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search"))
	return k
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.NextTab, k.PrevTab},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Refresh, k.Logout, k.Help, k.Quit},
	}
}

// Styles defines the application styles.
type Styles struct {
	// Tab bar styles
	TabBar       lipgloss.Style
	ActiveTab    lipgloss.Style
	InactiveTab  lipgloss.Style
	TabSeparator lipgloss.Style
	AccountLabel lipgloss.Style

	// Notification styles
	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	// Content styles
	Content lipgloss.Style
	Help    lipgloss.Style
	Spinner lipgloss.Style
	Toast   lipgloss.Style
	Panel   lipgloss.Style

	// Common styles
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}
	info := lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}

	s := Styles{}
	s.TabBar = lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).BorderForeground(subtle)
	s.ActiveTab = lipgloss.NewStyle().Bold(true).Foreground(highlight).Padding(0, 2)
	s.InactiveTab = lipgloss.NewStyle().Foreground(subtle).Padding(0, 2)
	s.TabSeparator = lipgloss.NewStyle().Foreground(subtle).SetString(" | ")
	s.AccountLabel = lipgloss.NewStyle().Foreground(info).Padding(0, 1)

	s.NotificationSuccess = lipgloss.NewStyle().Foreground(success).Padding(0, 1)
	s.NotificationError = lipgloss.NewStyle().Foreground(errorColor).Bold(true).Padding(0, 1)
	s.NotificationWarning = lipgloss.NewStyle().Foreground(warning).Padding(0, 1)
	s.NotificationInfo = lipgloss.NewStyle().Foreground(info).Padding(0, 1)

	s.Content = lipgloss.NewStyle().Padding(1, 2)
	s.Help = lipgloss.NewStyle().Foreground(subtle).Padding(0, 1)
	s.Spinner = lipgloss.NewStyle().Foreground(highlight)
	s.Toast = styles.ToastStyle
	s.Panel = styles.CardStyle

	s.Title = lipgloss.NewStyle().Bold(true).Foreground(highlight)
	s.Subtle = lipgloss.NewStyle().Foreground(subtle)
	s.Highlight = lipgloss.NewStyle().Foreground(highlight)
	s.Error = lipgloss.NewStyle().Foreground(errorColor)
	s.Success = lipgloss.NewStyle().Foreground(success)
	s.Warning = lipgloss.NewStyle().Foreground(warning)

	return s
}

// phase is the stage of the run. Tabs only receive input when ready.
type phase int

const (
	phaseBootstrap phase = iota
	phaseSignIn
	phaseReady
	phaseFatal
)

// Model is the main application model.
type Model struct {
	// Tab management
	activeTab TabID
	tabs      []Tab
	tabNames  []string

	// Shared state
	state    *State
	services *services.Manager
	keymap   KeyMap
	styles   Styles

	// UI components
	spinner components.LoadingSpinner

	// Session lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	location    string
	phase       phase
	outcome     session.Outcome
	guard       *guard.Guard
	guardAction guard.Action
	signedOut   bool
	fatalErr    error

	// Records loads
	loadGen          int
	loadCancel       context.CancelFunc
	refreshInterval  time.Duration
	refreshScheduled bool

	// Window dimensions
	width  int
	height int

	// UI state
	showHelp bool
	ready    bool

	// Service subscription
	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model.
func NewModel(mgr *services.Manager) *Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		activeTab: TabDashboard,
		tabNames:  []string{"Dashboard", "Records", "Follow-ups", "Info"},
		tabs:      make([]Tab, 4), // Placeholder - tabs will be set externally
		state:     NewState(),
		services:  mgr,
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   components.NewSpinner(""),
		ctx:       ctx,
		cancel:    cancel,
		phase:     phaseBootstrap,
	}
	if mgr != nil {
		m.refreshInterval = mgr.Config().RefreshInterval
		m.location = mgr.InitialLocation()
	}
	return m
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// SetLocation sets the location of the first mount, as when the run was
// started with an authorization response URL.
func (m *Model) SetLocation(location string) {
	if location != "" {
		m.location = location
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetServices returns the service manager.
func (m *Model) GetServices() *services.Manager {
	return m.services
}

// GetKeyMap returns the key bindings.
func (m *Model) GetKeyMap() KeyMap {
	return m.keymap
}

// GetStyles returns the application styles.
func (m *Model) GetStyles() Styles {
	return m.styles
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// GetWidth returns the window width.
func (m *Model) GetWidth() int {
	return m.width
}

// GetHeight returns the window height.
func (m *Model) GetHeight() int {
	return m.height
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Outcome returns how the session of the current mount was established.
func (m *Model) Outcome() session.Outcome {
	return m.outcome
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Init(),
		defaultTickCmd(),
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	if m.services == nil {
		return tea.Batch(cmds...)
	}

	uri := m.services.Config().RedirectURI
	if !identity.IsSecureContext(uri) {
		m.fail(fmt.Errorf("%w: %s must use https, or http on localhost", ErrInsecureContext, uri))
		return tea.Batch(cmds...)
	}

	m.state.SetLoadingNotification("Signing in...")
	cmds = append(cmds,
		subscribeToServicesCmd(m.services),
		bootstrapCmd(m.ctx, m.services, m.location),
	)
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	forward := true

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
	case tea.KeyMsg:
		cmd, handled := m.handleKeyMsg(msg)
		cmds = append(cmds, cmd)
		forward = !handled
	case spinner.TickMsg:
		cmds = append(cmds, m.handleSpinnerTick(msg))
	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	if forward && m.phase == phaseReady {
		cmds = append(cmds, m.updateActiveTab(msg))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, defaultTickCmd())
	case RefreshTickMsg:
		cmds = append(cmds, m.handleRefreshTick())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		cmds = append(cmds, m.handleServiceEvent(msg.Event))
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case BootstrapDoneMsg:
		cmds = append(cmds, m.handleBootstrapDone(msg))
	case GuardEvaluatedMsg:
		cmds = append(cmds, m.handleGuardEvaluated(msg))
	case GuardRetryMsg:
		if msg.Err != nil {
			cmds = append(cmds, NotifyError(fmt.Sprintf("Sign-in failed: %v", msg.Err)))
		} else {
			cmds = append(cmds, NotifyInfo("Opened the browser to sign in"))
		}
	case LoadRecordsMsg:
		cmds = append(cmds, m.startLoad())
	case RecordsLoadedMsg:
		cmds = append(cmds, m.handleRecordsLoaded(msg))
	case FilterChangedMsg:
		logger.Debug("filter changed", "filter", m.state.Filter())
	case LogoutMsg:
		if m.services != nil {
			cmds = append(cmds, logoutCmd(m.ctx, m.services))
		}
	case LogoutDoneMsg:
		cmds = append(cmds, m.handleLogoutDone(msg))
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Loading...")
	case StopLoadingMsg:
		m.state.SetLoading(msg.Resource, false)
		if !m.state.AnyLoading() {
			m.state.ClearLoadingNotification()
		}
	case ErrorMsg:
		cmds = append(cmds, NotifyError(msg.Error.Error()))
	case TabSwitchMsg:
		m.switchTab(msg.Tab)
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return cmds
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.updateTabSizes()
}

func (m *Model) handleSpinnerTick(msg spinner.TickMsg) tea.Cmd {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return cmd
}

// fail moves the run to the fatal screen. Only quitting is possible there.
func (m *Model) fail(err error) {
	logger.Error("fatal", "error", err)
	m.phase = phaseFatal
	m.fatalErr = err
	m.state.SetLoading("initial", false)
	m.state.ClearLoadingNotification()
}

func (m *Model) handleBootstrapDone(msg BootstrapDoneMsg) tea.Cmd {
	m.state.SetLoading("initial", false)
	m.state.ClearLoadingNotification()

	if msg.Err != nil {
		m.fail(fmt.Errorf("establishing the session: %w", msg.Err))
		return nil
	}

	if msg.Bootstrapper != nil {
		m.location = msg.Bootstrapper.Location()
	}
	m.outcome = msg.Outcome
	m.state.SetAccount(m.services.Session().ActiveAccount())
	logger.Info("session established", "outcome", msg.Outcome.String())

	if msg.Outcome.HasAccount() {
		return m.enterReady()
	}
	return m.enterSignIn(true)
}

// enterSignIn mounts a fresh guard. evaluate is false after an explicit
// logout so the browser is not reopened immediately.
func (m *Model) enterSignIn(evaluate bool) tea.Cmd {
	m.phase = phaseSignIn
	m.guard = m.services.NewGuard()
	m.guardAction = guard.ActionWait
	if !evaluate {
		return nil
	}
	return evaluateGuardCmd(m.ctx, m.guard)
}

func (m *Model) enterReady() tea.Cmd {
	m.phase = phaseReady
	m.guard = nil
	m.signedOut = false

	var cmds []tea.Cmd
	if account := m.state.Account(); account != nil && m.outcome == session.OutcomeRedirect {
		cmds = append(cmds, NotifySuccess("Signed in as "+account.Label()))
	}
	if m.services.Records().ResumePending() {
		cmds = append(cmds, NotifyInfo("Resuming records load"))
	}
	cmds = append(cmds, m.startLoad())

	if !m.refreshScheduled {
		if cmd := refreshTickCmd(m.refreshInterval); cmd != nil {
			m.refreshScheduled = true
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleGuardEvaluated(msg GuardEvaluatedMsg) tea.Cmd {
	if m.phase != phaseSignIn {
		return nil
	}
	m.guardAction = msg.Action
	if msg.Err != nil {
		return NotifyWarning(fmt.Sprintf("Could not open sign-in: %v", msg.Err))
	}

	switch msg.Action {
	case guard.ActionNone:
		m.state.SetAccount(m.services.Session().ActiveAccount())
		return m.enterReady()
	case guard.ActionRedirect, guard.ActionForcedRetry:
		return NotifyInfo("Opened the browser to sign in")
	}
	return nil
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.CallbackEvent:
		// A callback is a new mount: the session is bootstrapped again from
		// the response URL.
		logger.Info("authorization response received")
		m.cancelLoad()
		m.phase = phaseBootstrap
		m.guard = nil
		m.location = e.Location
		m.state.SetLoading("initial", true)
		m.state.SetLoadingNotification("Completing sign-in...")
		return bootstrapCmd(m.ctx, m.services, e.Location)

	case services.IdentityEvent:
		if e.Account != nil {
			m.state.SetAccount(e.Account)
		} else if m.services != nil {
			m.state.SetAccount(m.services.Session().ActiveAccount())
		}
		if e.Type == identity.EventLoginFailure && e.Err != nil {
			return NotifyError(fmt.Sprintf("Sign-in failed: %v", e.Err))
		}
		if m.phase == phaseSignIn && m.guard != nil && !m.signedOut {
			return evaluateGuardCmd(m.ctx, m.guard)
		}

	case services.FieldMapChangedEvent:
		if m.services == nil || !m.state.HasRecords() {
			return nil
		}
		m.state.SetRows(m.services.Records().Remap())
		return tea.Batch(NotifyInfo("Field map reloaded"), Send(RecordsChangedMsg{}))

	case services.ErrorEvent:
		return NotifyError(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

func (m *Model) cancelLoad() {
	if m.loadCancel != nil {
		m.loadCancel()
		m.loadCancel = nil
	}
	m.state.SetLoading("records", false)
}

// startLoad supersedes any load in flight; only the newest result is kept.
func (m *Model) startLoad() tea.Cmd {
	if m.services == nil || m.phase != phaseReady {
		return nil
	}
	m.cancelLoad()

	ctx, cancel := context.WithCancel(m.ctx)
	m.loadCancel = cancel
	m.loadGen++
	m.state.SetLoading("records", true)
	m.state.SetLoadingNotification("Loading records...")
	return loadRecordsCmd(ctx, m.services, m.loadGen)
}

func (m *Model) handleRecordsLoaded(msg RecordsLoadedMsg) tea.Cmd {
	if msg.Generation != m.loadGen {
		logger.Debug("dropping superseded records load", "generation", msg.Generation)
		return nil
	}
	m.cancelLoad()
	m.state.ClearLoadingNotification()

	switch {
	case msg.Err == nil:
		m.state.SetRecords(msg.Result)
		cmds := []tea.Cmd{
			Send(RecordsChangedMsg{}),
			NotifySuccess(fmt.Sprintf("Loaded %d records", len(msg.Result.Rows))),
		}
		if msg.Result.Truncated {
			cmds = append(cmds, NotifyWarning("List truncated, raise ADT_MAX_PAGES to load everything"))
		}
		return tea.Batch(cmds...)

	case gateway.IsRedirecting(msg.Err):
		return NotifyInfo("Sign-in required, continue in the browser")

	case errors.Is(msg.Err, gateway.ErrNoAccount):
		m.state.SetAccount(nil)
		return m.enterSignIn(true)

	case errors.Is(msg.Err, context.Canceled):
		return nil
	}

	m.state.SetLoadError(msg.Err.Error())
	return NotifyError(fmt.Sprintf("Failed to load records: %v", msg.Err))
}

func (m *Model) handleRefreshTick() tea.Cmd {
	next := refreshTickCmd(m.refreshInterval)
	if m.phase != phaseReady || !m.state.HasRecords() || m.state.IsLoadingRecords() {
		m.state.Refresh()
		return next
	}
	return tea.Batch(next, m.startLoad())
}

func (m *Model) handleLogoutDone(msg LogoutDoneMsg) tea.Cmd {
	if msg.Err != nil && !errors.Is(msg.Err, services.ErrNotSignedIn) {
		return NotifyError(fmt.Sprintf("Sign-out failed: %v", msg.Err))
	}
	m.cancelLoad()
	m.state.SetAccount(nil)
	m.state.ClearRecords()
	m.signedOut = true
	m.enterSignIn(false)
	return NotifyInfo("Signed out. Press r to sign in.")
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := m.height - 5
	contentHeight = max(0, contentHeight)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

func (m *Model) switchTab(id TabID) {
	if int(id) < 0 || int(id) >= len(m.tabs) {
		return
	}
	m.activeTab = id
	m.updateTabSizes()
}

func (m *Model) quit() tea.Cmd {
	m.cancelLoad()
	m.cancel()
	return tea.Quit
}

// capturing reports whether the active tab is taking text input.
func (m *Model) capturing() bool {
	if int(m.activeTab) >= len(m.tabs) || m.tabs[m.activeTab] == nil {
		return false
	}
	c, ok := m.tabs[m.activeTab].(InputCapturer)
	return ok && c.CapturesInput()
}

// handleKeyMsg handles keyboard input. handled is false when the key should
// also reach the active tab.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (cmd tea.Cmd, handled bool) {
	if msg.String() == "ctrl+c" {
		return m.quit(), true
	}

	if m.showHelp {
		switch {
		case key.Matches(msg, m.keymap.Help), key.Matches(msg, m.keymap.Escape):
			m.showHelp = false
		case key.Matches(msg, m.keymap.Quit):
			return m.quit(), true
		}
		return nil, true
	}

	switch m.phase {
	case phaseBootstrap, phaseFatal:
		if key.Matches(msg, m.keymap.Quit) {
			return m.quit(), true
		}
		return nil, true
	case phaseSignIn:
		return m.handleSignInKey(msg), true
	}

	if m.capturing() {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m.quit(), true
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Tab1):
		m.switchTab(TabDashboard)
	case key.Matches(msg, m.keymap.Tab2):
		m.switchTab(TabRecords)
	case key.Matches(msg, m.keymap.Tab3):
		m.switchTab(TabFollowUps)
	case key.Matches(msg, m.keymap.Tab4):
		m.switchTab(TabInfo)
	case key.Matches(msg, m.keymap.NextTab):
		m.switchTab(TabID((int(m.activeTab) + 1) % len(m.tabs)))
	case key.Matches(msg, m.keymap.PrevTab):
		m.switchTab(TabID((int(m.activeTab) - 1 + len(m.tabs)) % len(m.tabs)))
	case key.Matches(msg, m.keymap.Refresh):
		return m.startLoad(), true
	case key.Matches(msg, m.keymap.Logout):
		return Send(LogoutMsg{}), true
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) handleSignInKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m.quit()
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Retry):
		if m.guard == nil {
			m.guard = m.services.NewGuard()
		}
		m.signedOut = false
		return retryGuardCmd(m.ctx, m.guard)
	case key.Matches(msg, m.keymap.Reset):
		if m.guard == nil {
			return nil
		}
		m.guard.ResetSession()
		m.state.SetAccount(nil)
		m.signedOut = true
		return NotifyInfo(guard.ResetMessage)
	}
	return nil
}
