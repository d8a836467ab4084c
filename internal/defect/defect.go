// Package defect derives defect drafts from failed runs. Drafts are computed
// fresh on every call and are never stored or submitted anywhere.
package defect

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// AttachmentPlaceholder names the evidence a tester is expected to attach.
const AttachmentPlaceholder = "screenshot-step-failure.png"

// Drafter builds defect drafts from the case state store.
type Drafter struct {
	store       *casestate.Store
	environment string
	severity    string
	now         func() time.Time
}

// Option configures a Drafter or a single Draft call.
type Option func(*Drafter)

// WithEnvironment sets the environment line of the draft.
func WithEnvironment(env string) Option {
	return func(d *Drafter) {
		if env != "" {
			d.environment = env
		}
	}
}

// WithSeverity sets the draft severity. The value must be a Severity
// constant; Draft rejects anything else with ErrInvalidSeverity.
func WithSeverity(sev string) Option {
	return func(d *Drafter) {
		if sev != "" {
			d.severity = sev
		}
	}
}

// WithClock sets the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(d *Drafter) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDrafter returns a drafter over store. opts set the defaults for every
// draft.
func NewDrafter(store *casestate.Store, opts ...Option) *Drafter {
	d := &Drafter{
		store:       store,
		environment: types.DefaultEnvironment,
		severity:    types.DefaultSeverity,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DraftID returns the ID of the draft for the failed run runID of caseID.
// Drafting the same run again yields the same ID.
func DraftID(caseID, runID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(caseID+"/"+runID)).String()
}

// Draft builds a defect draft for caseID from its effective steps. Returns
// ErrNoFailedRun unless the latest finalized run of the case failed. opts
// override the drafter defaults for this call only.
func (d *Drafter) Draft(caseID string, opts ...Option) (types.DefectDraft, error) {
	cfg := *d
	for _, opt := range opts {
		opt(&cfg)
	}
	severity, err := types.ParseSeverity(cfg.severity)
	if err != nil {
		return types.DefectDraft{}, fmt.Errorf("%w: %q", err, cfg.severity)
	}

	tc, err := d.store.TestCase(caseID)
	if err != nil {
		return types.DefectDraft{}, err
	}
	last, err := d.store.LastRun(caseID)
	if err != nil {
		return types.DefectDraft{}, err
	}
	if last == nil || last.Outcome != types.OutcomeFailed {
		return types.DefectDraft{}, fmt.Errorf("%w: %s", types.ErrNoFailedRun, caseID)
	}
	steps, err := d.store.EffectiveSteps(caseID)
	if err != nil {
		return types.DefectDraft{}, err
	}

	return types.DefectDraft{
		DraftID:        DraftID(tc.ID, last.RunID),
		CaseID:         tc.ID,
		RunID:          last.RunID,
		Title:          fmt.Sprintf("[%s] %s - execution failed", tc.ID, tc.Title),
		Severity:       severity,
		Reproduction:   reproduction(steps),
		ExpectedResult: expected(steps),
		ActualResult:   actual(steps),
		Environment:    cfg.environment,
		Attachment:     AttachmentPlaceholder,
		CreatedAt:      cfg.now(),
	}, nil
}

func reproduction(steps []types.Step) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = fmt.Sprintf("%d. %s (expected: %s) [%s]", s.Number, s.Action, s.ExpectedResult, s.RunStatus)
	}
	return strings.Join(lines, "\n")
}

func expected(steps []types.Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.ExpectedResult != "" {
			parts = append(parts, s.ExpectedResult)
		}
	}
	return strings.Join(parts, "; ")
}

func actual(steps []types.Step) string {
	failed := types.FailedSteps(steps)
	if len(failed) == 0 {
		return "No step is marked as failed in the current step list."
	}
	nums := make([]string, len(failed))
	for i, n := range failed {
		nums[i] = fmt.Sprintf("%d", n)
	}
	noun := "Step"
	if len(failed) > 1 {
		noun = "Steps"
	}
	return fmt.Sprintf("%s %s failed during execution.", noun, strings.Join(nums, ", "))
}

// Markdown renders a draft for pasting into an issue tracker.
func Markdown(d types.DefectDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "- **Severity:** %s\n", d.Severity)
	fmt.Fprintf(&b, "- **Test case:** %s\n", d.CaseID)
	if d.RunID != "" {
		fmt.Fprintf(&b, "- **Run:** %s\n", d.RunID)
	}
	fmt.Fprintf(&b, "- **Environment:** %s\n", d.Environment)
	fmt.Fprintf(&b, "- **Created:** %s\n\n", d.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## Steps to reproduce\n\n%s\n\n", d.Reproduction)
	fmt.Fprintf(&b, "## Expected result\n\n%s\n\n", d.ExpectedResult)
	fmt.Fprintf(&b, "## Actual result\n\n%s\n\n", d.ActualResult)
	fmt.Fprintf(&b, "## Attachments\n\n- %s\n", d.Attachment)
	return b.String()
}
