package types

import (
	"strings"
	"time"
)

// Lifecycle statuses. A case starts NotStarted and is overwritten by run
// finalization or by an explicit manual mark.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusPassed     = "passed"
	StatusFailed     = "failed"
)

// StatusAll is the status filter value that matches every lifecycle status.
const StatusAll = "all"

// LifecycleStatuses lists the lifecycle statuses in display order.
var LifecycleStatuses = []string{
	StatusNotStarted,
	StatusInProgress,
	StatusPassed,
	StatusFailed,
}

// validStatuses is the set of recognized lifecycle status values.
var validStatuses = map[string]bool{
	StatusNotStarted: true,
	StatusInProgress: true,
	StatusPassed:     true,
	StatusFailed:     true,
}

// statusLabels are the human-readable names shown in listings.
var statusLabels = map[string]string{
	StatusNotStarted: "Not Started",
	StatusInProgress: "In Progress",
	StatusPassed:     "Passed",
	StatusFailed:     "Failed",
}

// ValidStatus reports whether s is one of the lifecycle status constants.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// StatusLabel returns the display name for a lifecycle status, or s itself
// when it is not recognized.
func StatusLabel(s string) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return s
}

// ParseStatus normalises a lifecycle status or filter value. It accepts the
// constants as well as display names ("Not Started", "in-progress") and the
// filter value "all". Returns ErrInvalidStatus otherwise.
func ParseStatus(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	if v == StatusAll || validStatuses[v] {
		return v, nil
	}
	return "", ErrInvalidStatus
}

// RunSummary is the finalized result of the latest execution of a case.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Outcome         string    `json:"outcome"`
}

// CaseState is the mutable overlay for one test case. A nil override means
// the catalog default is in effect; overrides replace the default whole and
// are never merged field by field.
type CaseState struct {
	CaseID           string      `json:"case_id"`
	LifecycleStatus  string      `json:"lifecycle_status"`
	TestDataOverride *string     `json:"test_data_override,omitempty"`
	StepsOverride    []Step      `json:"steps_override,omitempty"`
	LastRun          *RunSummary `json:"last_run,omitempty"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewCaseState returns the overlay for a case that has never been touched.
func NewCaseState(caseID string) *CaseState {
	return &CaseState{
		CaseID:          caseID,
		LifecycleStatus: StatusNotStarted,
	}
}

// SetLifecycleStatus overwrites the lifecycle status unconditionally.
// Returns ErrInvalidStatus if status is not a lifecycle status constant.
func (s *CaseState) SetLifecycleStatus(status string) error {
	if !validStatuses[status] {
		return ErrInvalidStatus
	}
	s.LifecycleStatus = status
	s.UpdatedAt = time.Now()
	return nil
}

// SetTestData stores text verbatim as the test data override.
func (s *CaseState) SetTestData(text string) {
	s.TestDataOverride = &text
	s.UpdatedAt = time.Now()
}

// ResetTestData clears the test data override.
func (s *CaseState) ResetTestData() {
	s.TestDataOverride = nil
	s.UpdatedAt = time.Now()
}

// SetSteps stores steps as the steps override. Returns
// ErrInvalidStepNumbering unless steps are numbered 1..N, and
// ErrInvalidRunStatus if any step carries an unknown run status.
func (s *CaseState) SetSteps(steps []Step) error {
	if !ContiguousNumbering(steps) {
		return ErrInvalidStepNumbering
	}
	for _, st := range steps {
		if !validRunStatuses[st.RunStatus] {
			return ErrInvalidRunStatus
		}
	}
	if steps == nil {
		steps = []Step{}
	}
	s.StepsOverride = CloneSteps(steps)
	s.UpdatedAt = time.Now()
	return nil
}

// Clone returns a deep copy of the overlay.
func (s *CaseState) Clone() *CaseState {
	out := *s
	if s.TestDataOverride != nil {
		v := *s.TestDataOverride
		out.TestDataOverride = &v
	}
	out.StepsOverride = CloneSteps(s.StepsOverride)
	if s.LastRun != nil {
		r := *s.LastRun
		out.LastRun = &r
	}
	return &out
}
