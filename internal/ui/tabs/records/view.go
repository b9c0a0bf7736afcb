package records

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

// View renders the records tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	m.syncTable()

	sections := []string{m.renderTitle()}

	switch {
	case m.mode == modeDetail:
		sections = append(sections, m.renderDetail())
	case !m.state.HasRecords():
		sections = append(sections, m.renderEmptyState())
	default:
		sections = append(sections, m.renderFilterBar(), m.renderTable())
	}

	sections = append(sections, m.renderFooter())

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Records")

	shown := len(m.rowIDs)
	total := m.state.TotalRows()
	text := fmt.Sprintf("%d records", total)
	if shown != total {
		text = fmt.Sprintf("%d of %d records", shown, total)
	}
	if res := m.state.Result(); res != nil && res.Truncated {
		text += " (list truncated)"
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, styles.HelpStyle.Render(text), "")
}

func (m *Model) renderEmptyState() string {
	cardWidth := max(m.width-6, 40)

	hint := "Press 'r' to load records"
	if m.state.IsLoadingRecords() {
		hint = m.spinner.ViewWithLabel()
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.SubTitleStyle.Render("No Records Loaded"),
		"",
		styles.InfoTextStyle.Render(hint),
		"",
	)

	return styles.CardStyle.Width(cardWidth).Render(content)
}

func (m *Model) renderFilterBar() string {
	f := m.state.Filter()

	searchView := m.search.View()
	if m.mode != modeSearch {
		s := f.Search
		if s == "" {
			s = styles.HelpStyle.Render("press / to search")
		}
		searchView = "/ " + s
	}
	searchStyle := styles.BlurredBorderStyle
	if m.mode == modeSearch {
		searchStyle = styles.FocusedBorderStyle
	}

	chips := []string{
		chip("Area", f.Equals[models.FieldArea]),
		chip("Status", f.Equals[models.FieldAuditStatus]),
	}
	var extra []string
	for field, v := range f.Equals {
		if field != models.FieldArea && field != models.FieldAuditStatus && v != "" {
			extra = append(extra, chip(field, v))
		}
	}
	sort.Strings(extra)
	chips = append(chips, extra...)

	return lipgloss.JoinHorizontal(lipgloss.Center,
		searchStyle.Render(searchView),
		"  ",
		strings.Join(chips, "  "),
	)
}

func chip(label, value string) string {
	if value == "" {
		return styles.HelpStyle.Render(label + ": all")
	}
	return styles.FocusedStyle.Render(label + ": " + value)
}

func (m *Model) renderTable() string {
	cardWidth := max(m.width-6, 60)

	if len(m.rowIDs) == 0 {
		return styles.CardStyle.Width(cardWidth).Render(
			styles.HelpStyle.Render("No records match the filter. Press 'c' to clear it."),
		)
	}
	return styles.CardStyle.Width(cardWidth).Render(m.table.View())
}

func (m *Model) renderDetail() string {
	cardWidth := max(m.width-6, 50)

	row, ok := m.detailRow()
	if !ok {
		return styles.CardStyle.Width(cardWidth).Render(
			styles.HelpStyle.Render("This record is no longer in the current view."),
		)
	}

	sum := m.state.Summary()
	stage := aggregate.FollowUpStageOf(row, sum.Generated)

	labelWidth := len("Follow-up stage")
	for _, field := range models.AuditFields {
		labelWidth = max(labelWidth, len(field))
	}

	lines := []string{
		styles.CardTitleStyle.Render(row.Title()),
		styles.HelpStyle.Render("id " + row.ID()),
		"",
	}
	for _, field := range models.AuditFields {
		value := aggregate.FormatValue(row.Get(field))
		style := lipgloss.NewStyle()
		switch field {
		case models.FieldAuditStatus:
			style = styles.ToneStyle(aggregate.StatusTone(row.String(field)))
		case models.FieldAuditScore:
			if n, ok := aggregate.ToNumber(row.Get(field)); ok {
				style = styles.ToneStyle(aggregate.ScoreTone(n))
			}
		}
		lines = append(lines, fmt.Sprintf("%s  %s",
			styles.ProgressLabelStyle.Width(labelWidth).Render(field),
			style.Render(value),
		))
	}
	lines = append(lines, "", fmt.Sprintf("%s  %s",
		styles.ProgressLabelStyle.Width(labelWidth).Render("Follow-up stage"),
		styles.StageStyle(stage).Render(string(stage)),
	))

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderFooter() string {
	var shortcuts []string

	switch m.mode {
	case modeSearch:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Enter") + " keep",
			styles.HelpKeyStyle.Render("Esc") + " cancel",
		}
	case modeDetail:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Esc") + " back",
		}
	default:
		shortcuts = []string{
			styles.HelpKeyStyle.Render("/") + " search",
			styles.HelpKeyStyle.Render("a") + " area",
			styles.HelpKeyStyle.Render("s") + " status",
			styles.HelpKeyStyle.Render("c") + " clear",
			styles.HelpKeyStyle.Render("Enter") + " details",
		}
	}

	return lipgloss.NewStyle().
		MarginTop(1).
		Foreground(styles.TextMuted).
		Render(strings.Join(shortcuts, styles.HelpStyle.Render(" | ")))
}
