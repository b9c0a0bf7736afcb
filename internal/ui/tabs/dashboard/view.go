package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/components"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	sections := []string{m.renderTitle()}

	if !m.state.HasRecords() {
		sections = append(sections, m.renderEmpty())
	} else {
		sum := m.state.Summary()
		cardWidth := max(m.width-6, 40)
		sections = append(sections,
			m.renderStatTiles(sum),
			m.renderGauges(sum, cardWidth),
			m.renderStages(sum, cardWidth),
			m.renderBreakdowns(sum, cardWidth),
			m.renderScoreByArea(sum, cardWidth),
			m.renderStatusByCategory(sum, cardWidth),
			m.renderTrends(sum, cardWidth),
		)
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("5S Audit Dashboard")

	var parts []string
	if res := m.state.Result(); res != nil {
		if res.Site != nil && res.Site.DisplayName != "" {
			parts = append(parts, res.Site.DisplayName)
		}
		parts = append(parts, "updated "+res.FetchedAt.Format("15:04:05"))
	}
	if desc := describeFilter(m.state.Filter()); desc != "" {
		parts = append(parts, "filter: "+desc)
	}
	if len(parts) == 0 {
		parts = append(parts, "Audit findings from the configured list")
	}
	subtitle := styles.HelpStyle.Render(strings.Join(parts, " · "))

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderEmpty() string {
	var rows []string
	icon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")

	switch {
	case m.state.IsLoadingRecords():
		rows = append(rows, m.spinner.ViewWithLabel())
	case m.state.LoadError() != "":
		rows = append(rows, styles.ErrorTextStyle.Render("Load failed: "+m.state.LoadError()))
		rows = append(rows, "")
		rows = append(rows, styles.InfoTextStyle.Render("  ╰─▶ Press r to try again"))
	default:
		rows = append(rows, fmt.Sprintf("%s %s", icon, styles.HelpStyle.Render("No records loaded")))
		rows = append(rows, "")
		rows = append(rows, styles.InfoTextStyle.Render("  ╰─▶ Press r to load records"))
	}

	return styles.CardStyle.Width(max(m.width-6, 40)).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderStatTiles(sum aggregate.Summary) string {
	stats := sum.Stats

	scoreStyle := styles.StatValueStyle
	if stats.HasScore {
		scoreStyle = scoreStyle.Inherit(styles.ToneStyle(aggregate.ScoreTone(stats.AvgScore)))
	}
	overdueStyle := styles.StatValueStyle
	if sum.Overdue > 0 {
		overdueStyle = overdueStyle.Inherit(styles.ErrorTextStyle)
	}

	tile := func(label, value string, style lipgloss.Style) string {
		return styles.StatTileStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
			style.Render(value),
			styles.HelpStyle.Render(label),
		))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		tile("Audits", fmt.Sprintf("%d", stats.Total), styles.StatValueStyle),
		tile("Open", fmt.Sprintf("%d", stats.Open), styles.StatValueStyle),
		tile("Closed", fmt.Sprintf("%d", stats.Closed), styles.StatValueStyle),
		tile("Avg score", stats.AvgScoreText(), scoreStyle),
		tile("Overdue", fmt.Sprintf("%d", sum.Overdue), overdueStyle),
	)
}

func (m *Model) renderGauges(sum aggregate.Summary, width int) string {
	stats := sum.Stats
	contentWidth := width - 6

	scoreTarget := 0.0
	if stats.HasScore {
		scoreTarget = min(max(stats.AvgScore/scoreScale*100, 0), 100)
	}
	animated := stats
	if stats.HasScore {
		animated.AvgScore = m.gauge(gaugeScore, scoreTarget) / 100 * scoreScale
	}

	closureTarget := 0.0
	if stats.Total > 0 {
		closureTarget = float64(stats.Closed) / float64(stats.Total) * 100
	}
	closure := m.gauge(gaugeClosure, closureTarget)

	closureLine := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.ProgressLabelStyle.Width(15).Render("Closed"),
		components.RenderGradientBar(closure/100, max(contentWidth-30, 10)),
		" ",
		styles.HelpStyle.Width(6).Align(lipgloss.Right).Render(fmt.Sprintf("%.0f%%", closureTarget)),
	)

	rows := []string{
		styles.CardTitleStyle.Render("Scores"),
		"",
		m.scoreBar.View("Avg score", animated, contentWidth),
		closureLine,
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderStages(sum aggregate.Summary, width int) string {
	counts := make(map[string]int, len(sum.Stages))
	for _, b := range sum.Stages {
		counts[b.Label] = b.Count
	}

	var parts []string
	for _, stage := range aggregate.Stages {
		style := styles.StageStyle(stage)
		parts = append(parts, fmt.Sprintf("%s %s", style.Render("●"), style.Render(fmt.Sprintf("%s %d", stage, counts[string(stage)]))))
	}

	rows := []string{
		styles.CardTitleStyle.Render("Follow-ups"),
		"",
		strings.Join(parts, "   "),
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderBreakdowns(sum aggregate.Summary, width int) string {
	if width < 90 {
		return lipgloss.JoinVertical(lipgloss.Left,
			bucketCard("By area", sum.ByArea, width),
			bucketCard("By status", sum.ByStatus, width),
			bucketCard("By 5S", sum.By5S, width),
		)
	}

	half := width/2 - 1
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top,
			bucketCard("By area", sum.ByArea, half),
			" ",
			bucketCard("By status", sum.ByStatus, half),
		),
		bucketCard("By 5S", sum.By5S, width),
	)
}

func bucketCard(title string, buckets []aggregate.Bucket, width int) string {
	values := make([]int, len(buckets))
	labels := make([]string, len(buckets))
	for i, b := range buckets {
		values[i] = b.Count
		labels[i] = b.Label
	}

	rows := []string{
		styles.CardTitleStyle.Render(title),
		"",
		components.RenderBarChart(values, labels, width-6),
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderScoreByArea(sum aggregate.Summary, width int) string {
	rows := []string{styles.CardTitleStyle.Render("Average score by area"), ""}

	if len(sum.ScoreByArea) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No scored audits"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	labelWidth := 0
	for _, a := range sum.ScoreByArea {
		labelWidth = max(labelWidth, min(lipgloss.Width(a.Label), 20))
	}
	barWidth := max(width-labelWidth-20, 10)

	for _, a := range sum.ScoreByArea {
		label := ansi.Truncate(a.Label, 20, "…")
		value := styles.ToneStyle(aggregate.ScoreTone(a.Average)).Render(fmt.Sprintf("%.2f", a.Average))
		rows = append(rows, fmt.Sprintf("%*s │%s %s %s",
			labelWidth, label,
			components.RenderGradientBar(a.Average/scoreScale, barWidth),
			value,
			styles.HelpStyle.Render(fmt.Sprintf("(%d)", a.Count)),
		))
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderStatusByCategory(sum aggregate.Summary, width int) string {
	rows := []string{styles.CardTitleStyle.Render("Status by 5S category"), ""}

	if len(sum.StatusByCategory) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No data available"))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	legend := components.StackLegend(sum.StatusByCategory)
	scale := 0
	labelWidth := 0
	for _, st := range sum.StatusByCategory {
		scale = max(scale, st.Total)
		labelWidth = max(labelWidth, min(lipgloss.Width(st.Label), 20))
	}
	barWidth := max(width-labelWidth-14, 10)

	for _, st := range sum.StatusByCategory {
		label := ansi.Truncate(st.Label, 20, "…")
		rows = append(rows, fmt.Sprintf("%*s │%s %d",
			labelWidth, label,
			components.RenderStackedBar(st, scale, barWidth, legend),
			st.Total,
		))
	}
	rows = append(rows, "", components.RenderLegend(legend))
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderTrends(sum aggregate.Summary, width int) string {
	sparkWidth := aggregate.TrendDays
	line := func(label string, series []aggregate.DayCount) string {
		total := 0
		for _, d := range series {
			total += d.Count
		}
		return fmt.Sprintf("%-22s %s %s",
			label,
			lipgloss.NewStyle().Foreground(styles.Primary).Render(components.RenderSparkline(aggregate.Counts(series), sparkWidth)),
			styles.HelpStyle.Render(fmt.Sprintf("%d", total)),
		)
	}

	rows := []string{
		styles.CardTitleStyle.Render("Last and next 14 days"),
		"",
		line("Audits (past 14d)", sum.AuditTrend),
		line("Follow-ups due (14d)", sum.FollowUpDue),
	}
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// describeFilter renders the active filter as "search, field=value".
func describeFilter(f aggregate.Filter) string {
	var parts []string
	if s := strings.TrimSpace(f.Search); s != "" {
		parts = append(parts, fmt.Sprintf("%q", s))
	}
	fields := make([]string, 0, len(f.Equals))
	for field, v := range f.Equals {
		if strings.TrimSpace(v) != "" {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	for _, field := range fields {
		parts = append(parts, field+"="+f.Equals[field])
	}
	return strings.Join(parts, ", ")
}
