// Package records provides the filterable records table of the audit dashboard.
package records

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/app"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

// mode is what the tab is showing.
type mode int

const (
	modeTable mode = iota
	modeSearch
	modeDetail
)

// keyMap defines the key bindings specific to the records tab.
type keyMap struct {
	Search key.Binding
	Area   key.Binding
	Status key.Binding
	Clear  key.Binding
	Open   key.Binding
	Escape key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Area: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "cycle area"),
		),
		Status: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "cycle status"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear filters"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}

// Model represents the records tab state.
type Model struct {
	state       *app.State
	table       table.Model
	search      textinput.Model
	spinner     components.LoadingSpinner
	keys        keyMap
	mode        mode
	prevSearch  string
	rowIDs      []string
	detailID    string
	width       int
	height      int
	seenVersion int
}

// New creates a new records model.
func New(state *app.State) *Model {
	search := textinput.New()
	search.Placeholder = "title, area, auditor..."
	search.Prompt = "/ "
	search.CharLimit = 100
	search.Width = 40

	t := table.New(
		table.WithColumns(columnsFor(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Subtle).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Primary)
	s.Selected = s.Selected.
		Foreground(styles.TextPrimary).
		Background(styles.BgAccent).
		Bold(true)
	t.SetStyles(s)

	return &Model{
		state:       state,
		table:       t,
		search:      search,
		spinner:     components.NewSpinner("Loading records..."),
		keys:        defaultKeyMap(),
		seenVersion: -1,
	}
}

// Init initializes the records tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// CapturesInput reports whether the search box has focus.
func (m *Model) CapturesInput() bool {
	return m.mode == modeSearch
}

// Update handles messages for the records tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case app.RecordsChangedMsg, app.FilterChangedMsg:
		m.syncTable()
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m, m.updateSearch(msg)
		case modeDetail:
			if key.Matches(msg, m.keys.Escape, m.keys.Open) {
				m.mode = modeTable
			}
			return m, nil
		}
		return m, m.updateTable(msg)
	}

	if m.mode == modeSearch {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateTable(msg tea.KeyMsg) tea.Cmd {
	m.syncTable()

	switch {
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.prevSearch = m.state.Filter().Search
		m.search.SetValue(m.prevSearch)
		m.search.CursorEnd()
		return m.search.Focus()

	case key.Matches(msg, m.keys.Area):
		return m.cycle(models.FieldArea, m.state.Summary().Areas)

	case key.Matches(msg, m.keys.Status):
		return m.cycle(models.FieldAuditStatus, m.state.Summary().Statuses)

	case key.Matches(msg, m.keys.Clear):
		if m.state.Filter().IsZero() {
			return nil
		}
		return m.applyFilter(aggregate.Filter{})

	case key.Matches(msg, m.keys.Open):
		if id, ok := m.selectedID(); ok {
			m.detailID = id
			m.mode = modeDetail
		}
		return nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return cmd
}

// updateSearch applies the search as it is typed. Enter keeps it, Esc
// restores the previous search.
func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeTable
		m.search.Blur()
		return nil
	case tea.KeyEsc:
		m.mode = modeTable
		m.search.Blur()
		return m.setSearch(m.prevSearch)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return tea.Batch(cmd, m.setSearch(m.search.Value()))
}

func (m *Model) setSearch(s string) tea.Cmd {
	f := m.state.Filter()
	if f.Search == s {
		return nil
	}
	f.Search = s
	return m.applyFilter(f)
}

// cycle moves an equality filter to the next option. After the last option
// the filter is removed.
func (m *Model) cycle(field string, options []string) tea.Cmd {
	if len(options) == 0 {
		return nil
	}
	f := m.state.Filter()
	current := f.Equals[field]

	next := options[0]
	for i, opt := range options {
		if strings.EqualFold(opt, current) {
			next = ""
			if i+1 < len(options) {
				next = options[i+1]
			}
			break
		}
	}

	equals := make(map[string]string, len(f.Equals)+1)
	for k, v := range f.Equals {
		equals[k] = v
	}
	if next == "" {
		delete(equals, field)
	} else {
		equals[field] = next
	}
	f.Equals = equals
	return m.applyFilter(f)
}

func (m *Model) applyFilter(f aggregate.Filter) tea.Cmd {
	if err := m.state.SetFilter(f); err != nil {
		return app.NotifyError(err.Error())
	}
	m.syncTable()
	m.table.GotoTop()
	return app.Send(app.FilterChangedMsg{})
}

func (m *Model) selectedID() (string, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rowIDs) {
		return "", false
	}
	return m.rowIDs[i], true
}

// detailRow returns the row shown in the detail view.
func (m *Model) detailRow() (models.LogicalRow, bool) {
	for _, row := range m.state.Summary().Rows {
		if row.ID() == m.detailID {
			return row, true
		}
	}
	return models.LogicalRow{}, false
}

// syncTable rebuilds the table rows when the summary changed.
func (m *Model) syncTable() {
	v := m.state.Version()
	if v == m.seenVersion {
		return
	}
	m.seenVersion = v

	sum := m.state.Summary()
	rows := make([]table.Row, 0, len(sum.Rows))
	ids := make([]string, 0, len(sum.Rows))
	for _, row := range sum.Rows {
		rows = append(rows, table.Row{
			row.Title(),
			aggregate.FormatValue(row.Get(models.FieldArea)),
			aggregate.FormatValue(row.Get(models.Field5SCategory)),
			aggregate.FormatValue(row.Get(models.FieldAuditStatus)),
			formatScore(row.Get(models.FieldAuditScore)),
			aggregate.FormatValue(row.Get(models.FieldAuditDate)),
			string(aggregate.FollowUpStageOf(row, sum.Generated)),
		})
		ids = append(ids, row.ID())
	}
	m.table.SetRows(rows)
	m.rowIDs = ids
	if m.table.Cursor() >= len(rows) {
		m.table.GotoTop()
	}
}

func formatScore(v any) string {
	if n, ok := aggregate.ToNumber(v); ok {
		return fmt.Sprintf("%.1f", n)
	}
	return "-"
}

// columnsFor sizes the columns to width. The title column takes the rest.
func columnsFor(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Area", Width: 14},
		{Title: "Category", Width: 12},
		{Title: "Status", Width: 8},
		{Title: "Score", Width: 6},
		{Title: "Audit date", Width: 12},
		{Title: "Follow-up", Width: 10},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	titleWidth := min(max(width-used-10, 16), 50)
	return append([]table.Column{{Title: "Title", Width: titleWidth}}, fixed...)
}

// SetSize sets the available size for the records tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetHeight(max(height-10, 3))
	m.table.SetColumns(columnsFor(width))
	m.search.Width = max(min(width-20, 60), 20)
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	switch m.mode {
	case modeSearch:
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "keep search")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	case modeDetail:
		return []key.Binding{m.keys.Escape}
	}
	return []key.Binding{
		m.keys.Search,
		m.keys.Area,
		m.keys.Status,
		m.keys.Clear,
		m.keys.Open,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Search, m.keys.Clear},
		{m.keys.Area, m.keys.Status},
		{m.keys.Open, m.keys.Escape},
	}
}
