package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
)

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Loading")
	if s.label != "Loading" {
		t.Error("Spinner label mismatch")
	}
}

func TestSpinner_Methods(t *testing.T) {
	s := NewSpinner("Init")

	s.SetLabel("Loading")
	if s.Label() != "Loading" {
		t.Errorf("Label = %s, want Loading", s.Label())
	}

	if s.View() == "" {
		t.Error("View returned empty")
	}
	if !strings.Contains(s.ViewWithLabel(), "Loading") {
		t.Error("ViewWithLabel should contain the label")
	}
	if s.Init() == nil {
		t.Error("Init should return command")
	}

	_, cmd := s.Update(s.model.Tick())
	if cmd == nil {
		t.Error("Update should return command for tick")
	}
}

func TestRenderSpinnerCentered(t *testing.T) {
	s := NewSpinner("Loading...")
	view := RenderSpinnerCentered(s, 20, 5)
	if !strings.Contains(view, "Loading...") {
		t.Error("RenderSpinnerCentered should contain the label")
	}

	hinted := NewSpinner("Signing in", WithHint("finish in the browser"), WithFrames(spinner.Line))
	view = RenderSpinnerCentered(hinted, 40, 6)
	if !strings.Contains(view, "finish in the browser") {
		t.Error("RenderSpinnerCentered should show the hint")
	}
	if hinted.model.Spinner.FPS != spinner.Line.FPS || len(hinted.model.Spinner.Frames) != len(spinner.Line.Frames) {
		t.Error("WithFrames should replace the animation")
	}
}

func TestRenderLineChart(t *testing.T) {
	if s := RenderLineChart([]float64{1, 2, 3, 4}, 20, 5, "Audits"); !strings.Contains(s, "Audits") {
		t.Error("RenderLineChart should contain the caption")
	}
	if s := RenderLineChart(nil, 20, 5, "Audits"); !strings.Contains(s, "No data") {
		t.Error("RenderLineChart should report missing data")
	}
}

func TestRenderDualLineChart(t *testing.T) {
	s := RenderDualLineChart([]float64{1, 2, 3}, []float64{3, 2}, 20, 5, "Title")
	if s == "" {
		t.Error("RenderDualLineChart returned empty")
	}
	if s := RenderDualLineChart(nil, nil, 20, 5, "Title"); !strings.Contains(s, "No data") {
		t.Error("RenderDualLineChart should report missing data")
	}
}

func TestRenderBarChart(t *testing.T) {
	s := RenderBarChart([]int{10, 20}, []string{"Assembly", "Paint"}, 40)
	lines := strings.Split(s, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.HasSuffix(lines[1], " 20") {
		t.Errorf("line %q should end with its count", lines[1])
	}
	if strings.Count(lines[1], "█") <= strings.Count(lines[0], "█") {
		t.Error("the larger value should have the longer bar")
	}
}

func TestRenderBarChart_SmallValueVisible(t *testing.T) {
	s := RenderBarChart([]int{1000, 1}, []string{"A", "B"}, 30)
	lines := strings.Split(s, "\n")
	if !strings.Contains(lines[1], "█") {
		t.Error("a non-zero value should render at least one block")
	}
}

func TestRenderSparkline(t *testing.T) {
	s := RenderSparkline([]float64{0, 1, 2, 3}, 10)
	if got := len([]rune(s)); got != 4 {
		t.Errorf("sparkline length = %d, want 4", got)
	}
	if []rune(s)[3] != '█' {
		t.Error("the maximum should render as a full block")
	}
	if RenderSparkline(nil, 10) != "" {
		t.Error("empty input should render nothing")
	}
}

func TestRenderLegend(t *testing.T) {
	s := RenderLegend([]LegendItem{{Label: "Open", Color: lipgloss.Color("#ffffff")}})
	if !strings.Contains(s, "Open") {
		t.Error("RenderLegend should contain the label")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Assembly line", 6); got != "Assem…" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("Paint", 6); got != "Paint" {
		t.Errorf("truncate() = %q", got)
	}
}

func TestScoreBar_View(t *testing.T) {
	bar := NewScoreBar(5)

	view := bar.View("Avg score", aggregate.Stats{AvgScore: 4.25, HasScore: true}, 50)
	if !strings.Contains(view, "4.25") {
		t.Errorf("View() = %q, want the score", view)
	}

	view = bar.View("Avg score", aggregate.Stats{}, 50)
	if !strings.Contains(view, "-") {
		t.Error("View() without score should show a dash")
	}
}

func TestRenderGradientBar(t *testing.T) {
	s := RenderGradientBar(0.5, 10)
	if got := strings.Count(s, "█"); got != 5 {
		t.Errorf("filled = %d, want 5", got)
	}
	if got := strings.Count(s, "░"); got != 5 {
		t.Errorf("empty = %d, want 5", got)
	}
	if RenderGradientBar(0.5, 0) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestRenderStackedBar(t *testing.T) {
	stack := aggregate.Stack{
		Label:    "Sort",
		Total:    4,
		Segments: []aggregate.Segment{{Label: "Open", Count: 3}, {Label: "Closed", Count: 1}},
	}
	legend := StackLegend([]aggregate.Stack{stack})

	if got := strings.Count(RenderStackedBar(stack, 4, 8, legend), "█"); got != 8 {
		t.Errorf("full scale blocks = %d, want 8", got)
	}
	if got := strings.Count(RenderStackedBar(stack, 8, 8, legend), "█"); got != 4 {
		t.Errorf("half scale blocks = %d, want 4", got)
	}
	if RenderStackedBar(aggregate.Stack{}, 4, 8, legend) != "" {
		t.Error("an empty stack should render nothing")
	}
}

func TestStackLegend(t *testing.T) {
	stacks := []aggregate.Stack{
		{Segments: []aggregate.Segment{{Label: "Closed"}}},
		{Segments: []aggregate.Segment{{Label: "Open"}, {Label: "Closed"}}},
	}
	legend := StackLegend(stacks)
	if len(legend) != 2 || legend[0].Label != "Closed" || legend[1].Label != "Open" {
		t.Errorf("StackLegend() = %v", legend)
	}
	if legend[0].Color == legend[1].Color {
		t.Error("labels should get distinct colors")
	}
}

func TestInterpolateColor(t *testing.T) {
	if got := interpolateColor("#000000", "#ffffff", 0); got != "#000000" {
		t.Errorf("start = %s", got)
	}
	if got := interpolateColor("#000000", "#ffffff", 1); got != "#ffffff" {
		t.Errorf("end = %s", got)
	}
	if got := hexToRGB("nope"); got != [3]int{0, 0, 0} {
		t.Errorf("hexToRGB(bad) = %v", got)
	}
}
