// Package followups provides the follow-up tracking tab: the two-week audit
// and due-date chart and the list of open follow-ups ordered by plan date.
package followups

import (
	"cmp"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/app"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/components"
)

// keyMap defines the key bindings specific to the follow-ups tab.
type keyMap struct {
	OverdueOnly key.Binding
	Up          key.Binding
	Down        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		OverdueOnly: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "toggle overdue only"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// Model represents the follow-ups tab state.
type Model struct {
	state       *app.State
	spinner     components.LoadingSpinner
	keys        keyMap
	viewport    viewport.Model
	overdueOnly bool
	width       int
	height      int
}

// New creates a new follow-ups model.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		spinner:  components.NewSpinner("Loading records..."),
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the follow-ups tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the follow-ups tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case app.RecordsChangedMsg, app.FilterChangedMsg:
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.OverdueOnly) {
			m.overdueOnly = !m.overdueOnly
			m.viewport.GotoTop()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// pending returns the open follow-ups of the current summary, earliest plan
// date first. Rows without a plan sort last.
func (m *Model) pending() []models.LogicalRow {
	sum := m.state.Summary()
	return sortByPlan(aggregate.Pending(sum.Rows, sum.Generated), sum.Generated, m.overdueOnly)
}

func sortByPlan(rows []models.LogicalRow, now time.Time, overdueOnly bool) []models.LogicalRow {
	type planned struct {
		row  models.LogicalRow
		plan time.Time
		ok   bool
	}

	items := make([]planned, 0, len(rows))
	for _, row := range rows {
		if overdueOnly && aggregate.FollowUpStageOf(row, now) != aggregate.StageOverdue {
			continue
		}
		plan, ok := aggregate.ParseDate(row.Get(models.FieldFollowUpPlanDate), now.Location())
		items = append(items, planned{row: row, plan: plan, ok: ok})
	}

	slices.SortStableFunc(items, func(a, b planned) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case a.ok && b.ok:
			return a.plan.Compare(b.plan)
		}
		return cmp.Compare(a.row.Title(), b.row.Title())
	})

	out := make([]models.LogicalRow, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out
}

// SetSize sets the available size for the follow-ups tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.OverdueOnly,
		m.keys.Up,
		m.keys.Down,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.OverdueOnly},
		{m.keys.Up, m.keys.Down},
	}
}
