package types

import (
	"strings"
	"time"
)

// Defect severities.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
	SeverityTrivial  = "trivial"
)

// DefaultSeverity is applied when a draft is created without one.
const DefaultSeverity = SeverityMajor

// validSeverities is the set of recognized severity values.
var validSeverities = map[string]bool{
	SeverityCritical: true,
	SeverityMajor:    true,
	SeverityMinor:    true,
	SeverityTrivial:  true,
}

// ParseSeverity normalises s to a Severity constant. Returns
// ErrInvalidSeverity if it matches none.
func ParseSeverity(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if !validSeverities[v] {
		return "", ErrInvalidSeverity
	}
	return v, nil
}

// DefectDraft is a pre-filled defect record derived from a failed run. It is
// never persisted or submitted; filing it is a manual step elsewhere.
type DefectDraft struct {
	DraftID        string    `json:"draft_id"`
	CaseID         string    `json:"case_id"`
	RunID          string    `json:"run_id"`
	Title          string    `json:"title"`
	Severity       string    `json:"severity"`
	Reproduction   string    `json:"reproduction"`
	ExpectedResult string    `json:"expected_result"`
	ActualResult   string    `json:"actual_result"`
	Environment    string    `json:"environment"`
	Attachment     string    `json:"attachment"`
	CreatedAt      time.Time `json:"created_at"`
}
