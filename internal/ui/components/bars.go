package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

const (
	gradientLow  = "#ff6b6b"
	gradientHigh = "#51cf66"
)

// ScoreBar renders an average audit score as a gauge.
type ScoreBar struct {
	progress progress.Model
	scale    float64
}

// NewScoreBar creates a gauge for scores between 0 and scale.
func NewScoreBar(scale float64) ScoreBar {
	p := progress.New(
		progress.WithScaledGradient(gradientLow, gradientHigh),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	if scale <= 0 {
		scale = 5
	}
	return ScoreBar{progress: p, scale: scale}
}

// View renders the gauge with label and value. Without a score the bar is
// empty and the value reads "-".
func (s ScoreBar) View(label string, stats aggregate.Stats, width int) string {
	s.progress.Width = max(width-30, 10)

	ratio := 0.0
	if stats.HasScore {
		ratio = min(max(stats.AvgScore/s.scale, 0), 1)
	}

	valueStyle := styles.HelpStyle
	if stats.HasScore {
		valueStyle = styles.ToneStyle(aggregate.ScoreTone(stats.AvgScore))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		styles.ProgressLabelStyle.Width(15).Render(label),
		s.progress.ViewAs(ratio),
		" ",
		valueStyle.Width(6).Align(lipgloss.Right).Render(stats.AvgScoreText()),
	)
}

// RenderGradientBar renders a bar filled to ratio (0..1) with a red to green
// gradient.
func RenderGradientBar(ratio float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*ratio), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(interpolateColor(gradientLow, gradientHigh, t)))
			b.WriteString(style.Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

// RenderStackedBar renders one group of a stacked breakdown as a single bar
// whose segments are proportional to their share of scaleTotal. Passing the
// largest group total as scaleTotal keeps several bars comparable. Segment
// colors come from legend, matched by label.
func RenderStackedBar(stack aggregate.Stack, scaleTotal, width int, legend []LegendItem) string {
	if width < 1 || stack.Total == 0 {
		return ""
	}
	scaleTotal = max(scaleTotal, stack.Total)

	barWidth := stack.Total * width / scaleTotal
	var b strings.Builder
	used := 0
	for i, seg := range stack.Segments {
		n := seg.Count * barWidth / stack.Total
		if i == len(stack.Segments)-1 {
			n = barWidth - used
		}
		if seg.Count > 0 && n == 0 {
			n = 1
		}
		n = min(n, barWidth-used)
		used += n
		style := lipgloss.NewStyle().Foreground(legendColor(legend, seg.Label))
		b.WriteString(style.Render(strings.Repeat("█", n)))
	}
	return b.String()
}

// StackLegend assigns a color to every segment label of stacks, in
// first-seen order.
func StackLegend(stacks []aggregate.Stack) []LegendItem {
	seen := make(map[string]bool)
	var items []LegendItem
	for _, st := range stacks {
		for _, seg := range st.Segments {
			if seen[seg.Label] {
				continue
			}
			seen[seg.Label] = true
			items = append(items, LegendItem{Label: seg.Label, Color: styles.SeriesColor(len(items))})
		}
	}
	return items
}

func legendColor(legend []LegendItem, label string) lipgloss.Color {
	for _, item := range legend {
		if item.Label == label {
			return item.Color
		}
	}
	return styles.Subtle
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
