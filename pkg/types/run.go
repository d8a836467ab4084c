package types

import "time"

// Execution run states.
const (
	RunStateActive    = "active"
	RunStateFinalized = "finalized"
	RunStateAbandoned = "abandoned"
)

// Run outcomes. An outcome is failed iff at least one step failed.
const (
	OutcomePassed = StatusPassed
	OutcomeFailed = StatusFailed
)

// ExecutionRun is one simulated pass through a case's steps. Only one run is
// active at a time; it is discarded when another run starts or a different
// case is selected.
type ExecutionRun struct {
	RunID           string    `json:"run_id"`
	CaseID          string    `json:"case_id"`
	State           string    `json:"state"`
	StartedAt       time.Time `json:"started_at"`
	Ticks           int       `json:"ticks"`
	TotalTicks      int       `json:"total_ticks"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Outcome         string    `json:"outcome,omitempty"`
}

// Progress returns the completed fraction of the run in [0, 1].
func (r ExecutionRun) Progress() float64 {
	if r.TotalTicks <= 0 {
		if r.State == RunStateFinalized {
			return 1
		}
		return 0
	}
	p := float64(r.Ticks) / float64(r.TotalTicks)
	if p > 1 {
		return 1
	}
	return p
}

// Active reports whether the run is still advancing.
func (r ExecutionRun) Active() bool {
	return r.State == RunStateActive
}

// Summary converts a finalized run into the record kept on the case.
func (r ExecutionRun) Summary() RunSummary {
	return RunSummary{
		RunID:           r.RunID,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationSeconds: r.DurationSeconds,
		Outcome:         r.Outcome,
	}
}

// OutcomeOf returns OutcomeFailed if any step failed, OutcomePassed otherwise.
func OutcomeOf(steps []Step) string {
	for _, s := range steps {
		if s.RunStatus == RunStatusFail {
			return OutcomeFailed
		}
	}
	return OutcomePassed
}

// FailedSteps returns the numbers of the steps whose run status is fail.
func FailedSteps(steps []Step) []int {
	var nums []int
	for _, s := range steps {
		if s.RunStatus == RunStatusFail {
			nums = append(nums, s.Number)
		}
	}
	return nums
}
