package aggregate

import (
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// StatusPriority orders status segments in stacked breakdowns.
var StatusPriority = []string{"Open", "Closed"}

// Summary is the complete view model of the dashboard for one filter.
type Summary struct {
	Generated        time.Time
	Rows             []models.LogicalRow
	ByArea           []Bucket
	ByStatus         []Bucket
	By5S             []Bucket
	Stages           []Bucket
	ScoreByArea      []Average
	StatusByCategory []Stack
	AuditTrend       []DayCount
	FollowUpDue      []DayCount
	Areas            []string
	Statuses         []string
	Stats            Stats
	Overdue          int
}

// Build filters rows and computes every aggregate. Filter options (Areas,
// Statuses) come from the unfiltered rows.
func Build(rows []models.LogicalRow, f Filter, now time.Time) Summary {
	filtered := Apply(rows, f)
	byCategory := Stacked(filtered, models.Field5SCategory, models.FieldAuditStatus, StackOptions{
		SegmentLabel: NormalizeStatus,
		Priority:     StatusPriority,
	})

	return Summary{
		Generated:        now,
		Rows:             filtered,
		Stats:            Summarize(filtered),
		ByArea:           GroupCount(filtered, models.FieldArea, CountOptions{}),
		ByStatus:         GroupCount(filtered, models.FieldAuditStatus, CountOptions{Label: NormalizeStatus}),
		By5S:             GroupCount(filtered, models.Field5S, CountOptions{}),
		Stages:           CountStages(filtered, now),
		ScoreByArea:      GroupAverage(filtered, models.FieldArea, models.FieldAuditScore, DefaultTopN),
		StatusByCategory: byCategory,
		AuditTrend:       Trend14(filtered, models.FieldAuditDate, now, Backward),
		FollowUpDue:      Trend14(Pending(filtered, now), models.FieldFollowUpPlanDate, now, Forward),
		Overdue:          OverdueCount(filtered, now),
		Areas:            Distinct(rows, models.FieldArea),
		Statuses:         Distinct(rows, models.FieldAuditStatus),
	}
}
