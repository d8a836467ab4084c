package types

import "strings"

// Test case categories. The catalog groups every case under exactly one.
const (
	CategoryAccounts  = "accounts"
	CategoryTransfers = "transfers"
	CategoryPayments  = "payments"
	CategoryCards     = "cards"
	CategoryLoans     = "loans"
	CategorySecurity  = "security"
)

// Categories lists the category values in display order.
var Categories = []string{
	CategoryAccounts,
	CategoryTransfers,
	CategoryPayments,
	CategoryCards,
	CategoryLoans,
	CategorySecurity,
}

// validCategories is the set of recognized category values.
var validCategories = map[string]bool{
	CategoryAccounts:  true,
	CategoryTransfers: true,
	CategoryPayments:  true,
	CategoryCards:     true,
	CategoryLoans:     true,
	CategorySecurity:  true,
}

// ValidCategory reports whether c is one of the Category constants.
func ValidCategory(c string) bool {
	return validCategories[c]
}

// Priority values. P1 is the most urgent.
const (
	PriorityP1 = "P1"
	PriorityP2 = "P2"
	PriorityP3 = "P3"
)

// priorityRank orders priorities; lower ranks sort first.
var priorityRank = map[string]int{
	PriorityP1: 1,
	PriorityP2: 2,
	PriorityP3: 3,
}

// ValidPriority reports whether p is one of the Priority constants.
func ValidPriority(p string) bool {
	_, ok := priorityRank[p]
	return ok
}

// ComparePriority returns a negative number when a is more urgent than b,
// zero when they are equal, and a positive number otherwise. Unknown
// priorities sort after every known one.
func ComparePriority(a, b string) int {
	ra, ok := priorityRank[a]
	if !ok {
		ra = len(priorityRank) + 1
	}
	rb, ok := priorityRank[b]
	if !ok {
		rb = len(priorityRank) + 1
	}
	return ra - rb
}

// StepDef is one scripted verification step as authored in the catalog.
type StepDef struct {
	Number         int    `json:"step_number" yaml:"step"`
	Action         string `json:"action" yaml:"action"`
	ExpectedResult string `json:"expected_result" yaml:"expected"`
}

// APIContract describes the request and response a case is expected to
// exercise. It is reference material only and is never invoked.
type APIContract struct {
	Method         string            `json:"method" yaml:"method"`
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	ResponseStatus int               `json:"response_status" yaml:"status"`
	ResponseBody   string            `json:"response_body" yaml:"body"`
}

// TestCase is an immutable catalog entry describing one banking scenario.
type TestCase struct {
	ID                  string      `json:"id" yaml:"id"`
	Title               string      `json:"title" yaml:"title"`
	Priority            string      `json:"priority" yaml:"priority"`
	Category            string      `json:"category" yaml:"category"`
	Description         string      `json:"description" yaml:"description"`
	Preconditions       []string    `json:"preconditions" yaml:"preconditions"`
	Actor               string      `json:"actor" yaml:"actor"`
	DefaultTestData     string      `json:"default_test_data" yaml:"test_data"`
	DefaultSteps        []StepDef   `json:"default_steps" yaml:"steps"`
	ExpectedAPIContract APIContract `json:"expected_api_contract" yaml:"api"`
}

// Clone returns a deep copy of the test case so callers cannot mutate the
// catalog through shared slices or maps.
func (tc TestCase) Clone() TestCase {
	out := tc
	out.Preconditions = append([]string(nil), tc.Preconditions...)
	out.DefaultSteps = append([]StepDef(nil), tc.DefaultSteps...)
	if tc.ExpectedAPIContract.Headers != nil {
		h := make(map[string]string, len(tc.ExpectedAPIContract.Headers))
		for k, v := range tc.ExpectedAPIContract.Headers {
			h[k] = v
		}
		out.ExpectedAPIContract.Headers = h
	}
	return out
}

// InitialSteps returns the default steps as runnable steps, each not run.
func (tc TestCase) InitialSteps() []Step {
	steps := make([]Step, len(tc.DefaultSteps))
	for i, d := range tc.DefaultSteps {
		steps[i] = Step{
			Number:         d.Number,
			Action:         d.Action,
			ExpectedResult: d.ExpectedResult,
			RunStatus:      RunStatusNotRun,
		}
	}
	return steps
}

// Step run statuses.
const (
	RunStatusNotRun = "not_run"
	RunStatusPass   = "pass"
	RunStatusFail   = "fail"
	RunStatusSkip   = "skip"
)

// validRunStatuses is the set of recognized step run statuses.
var validRunStatuses = map[string]bool{
	RunStatusNotRun: true,
	RunStatusPass:   true,
	RunStatusFail:   true,
	RunStatusSkip:   true,
}

// ParseRunStatus normalises s ("Pass", "not-run", "NOT_RUN") to a RunStatus
// constant. Returns ErrInvalidRunStatus if it matches none.
func ParseRunStatus(s string) (string, error) {
	v := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if v == "notrun" {
		v = RunStatusNotRun
	}
	if !validRunStatuses[v] {
		return "", ErrInvalidRunStatus
	}
	return v, nil
}

// Step is a verification step together with its latest run outcome.
type Step struct {
	Number         int    `json:"step_number" yaml:"step_number"`
	Action         string `json:"action" yaml:"action"`
	ExpectedResult string `json:"expected_result" yaml:"expected_result"`
	RunStatus      string `json:"run_status" yaml:"run_status"`
}

// Renumber assigns step numbers 1..N in slice order.
func Renumber(steps []Step) {
	for i := range steps {
		steps[i].Number = i + 1
	}
}

// ContiguousNumbering reports whether steps are numbered 1..N in order.
func ContiguousNumbering(steps []Step) bool {
	for i, s := range steps {
		if s.Number != i+1 {
			return false
		}
	}
	return true
}

// CloneSteps returns a copy of steps; a nil input yields nil.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// Editable step fields.
const (
	FieldAction         = "action"
	FieldExpectedResult = "expected_result"
	FieldRunStatus      = "run_status"
)

// ParseStepField normalises a step field name ("expectedResult",
// "expected-result", "Run Status"). Returns ErrInvalidField otherwise.
func ParseStepField(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "", "_", "", " ", "").Replace(v)
	switch v {
	case "action":
		return FieldAction, nil
	case "expectedresult", "expected":
		return FieldExpectedResult, nil
	case "runstatus", "status":
		return FieldRunStatus, nil
	default:
		return "", ErrInvalidField
	}
}
