// Package dashboard provides the summary tab of the audit dashboard.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/audit-dashboard-tui/internal/app"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/components"
)

// scoreScale is the maximum audit score.
const scoreScale = 5.0

const animationDuration = 1.2

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	ScrollDown key.Binding
	ScrollUp   key.Binding
	Top        key.Binding
	Bottom     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ScrollDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// AnimationState eases a gauge from its previous value to a new target.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Gauge keys.
const (
	gaugeScore   = "score"
	gaugeClosure = "closure"
)

// Model represents the dashboard tab state.
type Model struct {
	state       *app.State
	animations  map[string]*AnimationState
	spinner     components.LoadingSpinner
	scoreBar    components.ScoreBar
	keys        keyMap
	viewport    viewport.Model
	width       int
	height      int
	seenVersion int
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:       state,
		spinner:     components.NewSpinner("Loading records..."),
		scoreBar:    components.NewScoreBar(scoreScale),
		keys:        defaultKeyMap(),
		viewport:    viewport.New(0, 0),
		animations:  make(map[string]*AnimationState),
		seenVersion: -1,
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.RecordsChangedMsg, app.FilterChangedMsg:
		m.syncAnimationTargets(time.Now())
		cmds = append(cmds, animationTickCmd())

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	now := time.Time(msg)

	animating := m.syncAnimationTargets(now)
	m.stepAnimations(now)

	if animating || m.state.AnyLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points the gauges at the current summary. It reports
// whether any gauge still has to move.
func (m *Model) syncAnimationTargets(now time.Time) bool {
	if v := m.state.Version(); v != m.seenVersion {
		m.seenVersion = v
		m.viewport.GotoTop()
	}

	stats := m.state.Summary().Stats

	score := 0.0
	if stats.HasScore {
		score = min(max(stats.AvgScore/scoreScale*100, 0), 100)
	}
	closure := 0.0
	if stats.Total > 0 {
		closure = float64(stats.Closed) / float64(stats.Total) * 100
	}

	a := m.updateAnimationState(gaugeScore, score, now)
	b := m.updateAnimationState(gaugeClosure, closure, now)
	return a || b
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}
		elapsed := now.Sub(state.StartTime).Seconds()
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}
		progress := elapsed / animationDuration
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
	}
}

// gauge returns the displayed percentage of a gauge, falling back to the
// target before the first tick.
func (m *Model) gauge(animKey string, target float64) float64 {
	if state, ok := m.animations[animKey]; ok && state.TargetPercent == target {
		return state.CurrentPercent
	}
	return target
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ScrollDown,
		m.keys.ScrollUp,
		m.keys.Top,
		m.keys.Bottom,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ScrollDown, m.keys.ScrollUp},
		{m.keys.Top, m.keys.Bottom},
	}
}
