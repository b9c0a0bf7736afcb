package followups

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

// Series colors of the dual chart, matching the asciigraph palette it uses.
var (
	auditSeriesColor = lipgloss.Color("#0000FF")
	dueSeriesColor   = lipgloss.Color("#DAA520")
)

// View renders the follow-ups tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}
	if !m.state.HasRecords() {
		return m.renderEmpty()
	}

	sum := m.state.Summary()
	rows := m.pending()

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(sum, len(rows)),
		m.renderChart(sum),
		m.renderPending(sum, rows),
	)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderEmpty() string {
	msg := "No records loaded. Press r to load records."
	if m.state.IsLoadingRecords() {
		msg = m.spinner.ViewWithLabel()
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("Follow-ups"),
		"",
		styles.HelpStyle.Render(msg),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader(sum aggregate.Summary, shown int) string {
	title := styles.TitleStyle.Render("Follow-ups")

	scopeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)
	scope := "all open"
	if m.overdueOnly {
		scope = "overdue only"
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", scopeStyle.Render("[o] "+scope))

	var counts []string
	for _, b := range sum.Stages {
		style := styles.StageStyle(aggregate.FollowUpStage(b.Label))
		counts = append(counts, style.Render(fmt.Sprintf("%s %d", b.Label, b.Count)))
	}
	subtitle := styles.HelpStyle.Render(fmt.Sprintf("%d shown · as of %s · ", shown, sum.Generated.Format("Jan 2, 2006"))) +
		strings.Join(counts, styles.HelpStyle.Render(" · "))

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) renderChart(sum aggregate.Summary) string {
	cardWidth := max(m.width-6, 40)

	rows := []string{styles.CardTitleStyle.Render("Audits and follow-ups due"), ""}

	audits := aggregate.Counts(sum.AuditTrend)
	due := aggregate.Counts(sum.FollowUpDue)
	chart := components.RenderDualLineChart(audits, due, max(cardWidth-12, 30), 8,
		fmt.Sprintf("Audits held over the past %d days vs follow-ups due over the next %d", aggregate.TrendDays, aggregate.TrendDays))
	for line := range strings.SplitSeq(chart, "\n") {
		rows = append(rows, "  "+line)
	}

	rows = append(rows, "", "  "+components.RenderLegend([]components.LegendItem{
		{Label: "Audits held", Color: auditSeriesColor},
		{Label: "Follow-ups due", Color: dueSeriesColor},
	}))

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderPending(sum aggregate.Summary, pending []models.LogicalRow) string {
	cardWidth := max(m.width-6, 40)

	rows := []string{styles.CardTitleStyle.Render("Open follow-ups"), ""}
	if len(pending) == 0 {
		msg := "Every follow-up is completed."
		if m.overdueOnly {
			msg = "Nothing is overdue."
		}
		rows = append(rows, styles.SuccessTextStyle.Render(msg))
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	titleWidth := max(cardWidth-60, 16)
	for _, row := range pending {
		stage := aggregate.FollowUpStageOf(row, sum.Generated)
		plan := "no plan"
		if d, ok := aggregate.ParseDate(row.Get(models.FieldFollowUpPlanDate), sum.Generated.Location()); ok {
			plan = d.Format("2006-01-02")
		}
		rows = append(rows, fmt.Sprintf("%s %s  %s  %s  %s",
			styles.StageStyle(stage).Width(9).Render(string(stage)),
			styles.HelpStyle.Width(10).Render(plan),
			lipgloss.NewStyle().Width(titleWidth).Render(ansi.Truncate(row.Title(), titleWidth, "…")),
			styles.HelpStyle.Width(14).Render(ansi.Truncate(row.String(models.FieldArea), 14, "…")),
			styles.HelpStyle.Render(ansi.Truncate(row.String(models.FieldAuditee), 16, "…")),
		))
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
