package aggregate

import (
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/normalize"
)

// FollowUpStage classifies the follow-up of an audit finding.
type FollowUpStage string

// Follow-up stages in display order.
const (
	StageOverdue   FollowUpStage = "Overdue"
	StageOnTrack   FollowUpStage = "On Track"
	StageNoPlan    FollowUpStage = "No Plan"
	StageCompleted FollowUpStage = "Completed"
)

// Stages lists every stage in display order.
var Stages = []FollowUpStage{StageOverdue, StageOnTrack, StageNoPlan, StageCompleted}

// FollowUpStageOf derives the stage from the plan and completion dates using
// calendar-day comparison. A plan date that cannot be parsed counts as no plan.
func FollowUpStageOf(row models.LogicalRow, now time.Time) FollowUpStage {
	if normalize.IsMeaningful(row.Get(models.FieldFollowUpDate)) {
		return StageCompleted
	}
	plan, ok := ParseDate(row.Get(models.FieldFollowUpPlanDate), now.Location())
	if !ok {
		return StageNoPlan
	}
	if Day(plan).Before(Day(now)) {
		return StageOverdue
	}
	return StageOnTrack
}

// CountStages counts rows per follow-up stage. Every stage is present, in
// Stages order.
func CountStages(rows []models.LogicalRow, now time.Time) []Bucket {
	counts := make(map[FollowUpStage]int, len(Stages))
	for _, row := range rows {
		counts[FollowUpStageOf(row, now)]++
	}
	out := make([]Bucket, len(Stages))
	for i, s := range Stages {
		out[i] = Bucket{Label: string(s), Count: counts[s]}
	}
	return out
}

// OverdueCount is the number of rows whose follow-up is overdue.
func OverdueCount(rows []models.LogicalRow, now time.Time) int {
	n := 0
	for _, row := range rows {
		if FollowUpStageOf(row, now) == StageOverdue {
			n++
		}
	}
	return n
}

// Pending returns the rows whose follow-up is not completed.
func Pending(rows []models.LogicalRow, now time.Time) []models.LogicalRow {
	out := make([]models.LogicalRow, 0, len(rows))
	for _, row := range rows {
		if FollowUpStageOf(row, now) != StageCompleted {
			out = append(out, row)
		}
	}
	return out
}
