package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/internal/catalog"
	"github.com/mesh-intelligence/workbench/internal/engine"
	"github.com/mesh-intelligence/workbench/internal/memory"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

type harness struct {
	store *casestate.Store
	sched *engine.ManualScheduler
	dir   string
	model Model
}

func newHarness(t *testing.T, outcomes ...string) *harness {
	t.Helper()
	b := memory.NewBackend()
	require.NoError(t, b.Attach(types.DefaultConfig()))
	t.Cleanup(func() { b.Detach() })

	store, err := casestate.New(catalog.MustDefault(), b)
	require.NoError(t, err)
	sched := engine.NewManualScheduler()
	eng := engine.New(store, engine.WithScheduler(sched), engine.WithOutcome(engine.FixedOutcomes(outcomes...)))

	dir := t.TempDir()
	m, err := New(context.Background(), Options{
		Store:     store,
		Engine:    eng,
		ExportDir: dir,
	})
	require.NoError(t, err)

	h := &harness{store: store, sched: sched, dir: dir, model: m}
	h.send(tea.WindowSizeMsg{Width: 140, Height: 50})
	return h
}

func (h *harness) send(msg tea.Msg) {
	next, _ := h.model.Update(msg)
	h.model = next.(Model)
}

func (h *harness) keys(s string) {
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func (h *harness) search(term string) {
	h.keys("/")
	h.keys(term)
	h.send(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestNewShowsWholeCatalog(t *testing.T) {
	h := newHarness(t)
	assert.Len(t, h.model.rows, 60)
	assert.Equal(t, "UC-001", h.model.SelectedID())
	assert.Equal(t, modeBrowse, h.model.mode)

	view := h.model.View()
	assert.Contains(t, view, "QA Workbench")
	assert.Contains(t, view, "UC-001")
}

func TestNewRequiresStoreAndEngine(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestNavigation(t *testing.T) {
	h := newHarness(t)
	h.send(tea.KeyMsg{Type: tea.KeyDown})
	h.keys("j")
	assert.Equal(t, "UC-003", h.model.SelectedID())

	h.keys("k")
	assert.Equal(t, "UC-002", h.model.SelectedID())

	h.send(tea.KeyMsg{Type: tea.KeyUp})
	h.send(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "UC-001", h.model.SelectedID(), "selection stops at the top")
}

func TestFilters(t *testing.T) {
	h := newHarness(t)

	h.keys("c")
	assert.Equal(t, types.CategoryAccounts, h.model.Filter().Category)
	assert.Len(t, h.model.rows, 10)

	h.keys("c")
	assert.Equal(t, types.CategoryTransfers, h.model.Filter().Category)
	assert.Equal(t, "UC-011", h.model.SelectedID())

	h.search("schedule")
	assert.Equal(t, modeBrowse, h.model.mode)
	assert.Equal(t, []string{"UC-015", "UC-016"}, rowIDs(h.model))

	h.keys("f")
	assert.Equal(t, types.StatusNotStarted, h.model.Filter().Status)
	assert.Len(t, h.model.rows, 2)
	h.keys("f")
	assert.Equal(t, types.StatusInProgress, h.model.Filter().Status)
	assert.Empty(t, h.model.rows)
	assert.Empty(t, h.model.SelectedID())
}

func TestRunUpdatesListWhenFinished(t *testing.T) {
	h := newHarness(t, types.RunStatusPass, types.RunStatusPass, types.RunStatusFail)
	h.search("UC-015")
	require.Equal(t, "UC-015", h.model.SelectedID())

	h.keys("r")
	assert.Equal(t, types.StatusInProgress, h.model.rows[0].Status)

	h.sched.Advance(10)
	h.send(tickMsg{})

	assert.Equal(t, types.StatusFailed, h.model.rows[0].Status)
	run, ok := h.model.engine.Current()
	require.True(t, ok)
	assert.Equal(t, types.RunStateFinalized, run.State)
	assert.Contains(t, h.model.detail.View(), "Outcome")
}

func TestMovingAwayAbandonsRun(t *testing.T) {
	h := newHarness(t)
	h.keys("r")
	h.keys("j")

	run, ok := h.model.engine.Current()
	require.True(t, ok)
	assert.Equal(t, "UC-001", run.CaseID)
	assert.Equal(t, types.RunStateAbandoned, run.State)
}

func TestMarkDuringRunSurvivesMovingAway(t *testing.T) {
	h := newHarness(t)
	h.keys("r")
	h.sched.Advance(2)
	h.keys("mm")
	assert.Equal(t, types.StatusFailed, h.model.rows[0].Status)

	h.keys("j")
	status, err := h.store.LifecycleStatus("UC-001")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, status)
}

func TestStepEditing(t *testing.T) {
	h := newHarness(t)
	h.search("UC-015")

	h.keys("a")
	steps, err := h.store.EffectiveSteps("UC-015")
	require.NoError(t, err)
	require.Len(t, steps, 6)
	assert.Equal(t, 5, h.model.stepCursor, "cursor follows the new step")

	h.keys("s")
	steps, err = h.store.EffectiveSteps("UC-015")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusPass, steps[5].RunStatus)

	h.keys("e")
	require.Equal(t, modeEditStep, h.model.mode)
	h.model.stepInput.SetValue("Confirm the schedule")
	h.send(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeBrowse, h.model.mode)

	steps, err = h.store.EffectiveSteps("UC-015")
	require.NoError(t, err)
	assert.Equal(t, "Confirm the schedule", steps[5].Action)

	h.keys("[[[")
	h.keys("d")
	steps, err = h.store.EffectiveSteps("UC-015")
	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, "Confirm the schedule", steps[4].Action)
	for i, st := range steps {
		assert.Equal(t, i+1, st.Number)
	}
}

func TestDataEditing(t *testing.T) {
	h := newHarness(t)

	h.keys("t")
	require.Equal(t, modeEditData, h.model.mode)
	h.model.data.SetValue("{ not json")
	h.send(tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.Equal(t, modeBrowse, h.model.mode)
	require.NotNil(t, h.model.validation)
	assert.False(t, h.model.validation.Valid)
	data, err := h.store.EffectiveTestData("UC-001")
	require.NoError(t, err)
	assert.Equal(t, "{ not json", data)

	h.keys("R")
	h.keys("v")
	require.NotNil(t, h.model.validation)
	assert.True(t, h.model.validation.Valid)
}

func TestDataEditCancel(t *testing.T) {
	h := newHarness(t)
	h.keys("t")
	h.model.data.SetValue("discarded")
	h.send(tea.KeyMsg{Type: tea.KeyEsc})

	state, err := h.store.State("UC-001")
	require.NoError(t, err)
	assert.Nil(t, state.TestDataOverride)
}

func TestDefectDraft(t *testing.T) {
	h := newHarness(t, types.RunStatusFail)

	h.keys("D")
	assert.Equal(t, modeBrowse, h.model.mode)
	assert.Contains(t, h.model.flash, "No failed run")

	h.keys("r")
	h.sched.Advance(20)
	h.send(tickMsg{})
	h.keys("D")
	require.Equal(t, modeDefect, h.model.mode)
	require.NotNil(t, h.model.draft)
	assert.True(t, strings.HasPrefix(h.model.draft.Title, "[UC-001]"))

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeBrowse, h.model.mode)
	assert.Nil(t, h.model.draft)
}

func TestMarkAndExport(t *testing.T) {
	h := newHarness(t)
	h.keys("m")
	assert.Equal(t, types.StatusPassed, h.model.rows[0].Status)
	h.keys("m")
	assert.Equal(t, types.StatusFailed, h.model.rows[0].Status)
	h.keys("m")
	assert.Equal(t, types.StatusPassed, h.model.rows[0].Status, "marks never reach in progress or not started")

	h.keys("X")
	path := filepath.Join(h.dir, "test-results.json")
	assert.Contains(t, h.model.flash, path)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestQuit(t *testing.T) {
	h := newHarness(t)
	_, cmd := h.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func rowIDs(m Model) []string {
	out := make([]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.TestCase.ID
	}
	return out
}
