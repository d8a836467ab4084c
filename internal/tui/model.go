// Package tui implements the interactive workbench: a filterable case list,
// a detail pane with steps and test data, and live run progress.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/internal/defect"
	"github.com/mesh-intelligence/workbench/internal/editor"
	"github.com/mesh-intelligence/workbench/internal/engine"
	"github.com/mesh-intelligence/workbench/internal/export"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// pollInterval is how often the model samples the engine.
const pollInterval = time.Second / 8

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeEditData
	modeEditStep
	modeDefect
)

// Options wires the model to the rest of the workbench.
type Options struct {
	Store        *casestate.Store
	Engine       *engine.Engine
	Drafter      *defect.Drafter
	ExportDir    string
	ExportFormat string
	Logger       *slog.Logger
}

// Model is the bubbletea model of the workbench.
type Model struct {
	ctx     context.Context
	store   *casestate.Store
	engine  *engine.Engine
	drafter *defect.Drafter
	logger  *slog.Logger

	exportDir    string
	exportFormat string

	rows        []casestate.Row
	selected    int
	stepCursor  int
	categoryIdx int
	statusIdx   int

	mode      mode
	editField string
	search    textinput.Model
	stepInput textinput.Model
	data      textarea.Model
	detail    viewport.Model
	progress  progress.Model
	help      help.Model
	keys      keyMap

	validation *editor.Validation
	draft      *types.DefectDraft
	lastRun    types.ExecutionRun
	flash      string
	err        error

	width  int
	height int
}

type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Run starts the interactive program and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	m, err := New(ctx, opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// New builds the initial model with every case visible.
func New(ctx context.Context, opts Options) (Model, error) {
	if opts.Store == nil || opts.Engine == nil {
		return Model{}, errors.New("tui: store and engine are required")
	}
	if opts.Drafter == nil {
		opts.Drafter = defect.NewDrafter(opts.Store)
	}
	if opts.ExportFormat == "" {
		opts.ExportFormat = types.FormatJSON
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	search := textinput.New()
	search.Placeholder = "id or title"
	search.Prompt = "/ "
	search.CharLimit = 64

	stepInput := textinput.New()
	stepInput.CharLimit = 256

	data := textarea.New()
	data.ShowLineNumbers = true
	data.CharLimit = 0

	m := Model{
		ctx:          ctx,
		store:        opts.Store,
		engine:       opts.Engine,
		drafter:      opts.Drafter,
		logger:       opts.Logger,
		exportDir:    opts.ExportDir,
		exportFormat: opts.ExportFormat,
		search:       search,
		stepInput:    stepInput,
		data:         data,
		detail:       viewport.New(0, 0),
		progress:     progress.New(progress.WithDefaultGradient()),
		help:         help.New(),
		keys:         defaultKeyMap(),
	}
	if err := m.reload(); err != nil {
		return Model{}, err
	}
	m.refreshDetail()
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshDetail()
		return m, nil

	case tickMsg:
		m.poll()
		return m, tick()

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeEditData:
			return m.updateData(msg)
		case modeEditStep:
			return m.updateStepInput(msg)
		case modeDefect:
			if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Defect) {
				m.mode = modeBrowse
				m.draft = nil
				m.refreshDetail()
				return m, nil
			}
		}
		return m.updateBrowse(msg)
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	m.err = nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.Cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Category):
		m.categoryIdx = (m.categoryIdx + 1) % (len(m.store.Catalog().Categories()) + 1)
		m.setError(m.reload())
	case key.Matches(msg, m.keys.Status):
		m.statusIdx = (m.statusIdx + 1) % (len(types.LifecycleStatuses) + 1)
		m.setError(m.reload())
	case key.Matches(msg, m.keys.Run):
		m.startRun()
	case key.Matches(msg, m.keys.Cancel):
		m.engine.Cancel()
		m.poll()
	case key.Matches(msg, m.keys.Mark):
		m.markStatus()
	case key.Matches(msg, m.keys.StepPrev):
		m.moveStep(-1)
	case key.Matches(msg, m.keys.StepNext):
		m.moveStep(1)
	case key.Matches(msg, m.keys.AddStep):
		m.addStep()
	case key.Matches(msg, m.keys.RemoveStep):
		m.removeStep()
	case key.Matches(msg, m.keys.EditAction):
		cmd := m.beginStepEdit(types.FieldAction)
		return m, cmd
	case key.Matches(msg, m.keys.EditExpect):
		cmd := m.beginStepEdit(types.FieldExpectedResult)
		return m, cmd
	case key.Matches(msg, m.keys.StepStatus):
		m.cycleStepStatus()
	case key.Matches(msg, m.keys.EditData):
		cmd := m.beginDataEdit()
		return m, cmd
	case key.Matches(msg, m.keys.Validate):
		m.validate()
	case key.Matches(msg, m.keys.Format):
		m.format()
	case key.Matches(msg, m.keys.ResetData):
		m.resetData()
	case key.Matches(msg, m.keys.Defect):
		m.draftDefect()
	case key.Matches(msg, m.keys.Export):
		m.exportAll()
	default:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	m.refreshDetail()
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm), key.Matches(msg, m.keys.Back):
		m.mode = modeBrowse
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.setError(m.reload())
	m.refreshDetail()
	return m, cmd
}

func (m Model) updateData(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Save):
		if ed := m.dataEditor(); ed != nil {
			m.setError(ed.Edit(m.data.Value()))
			m.validate()
		}
		m.mode = modeBrowse
		m.data.Blur()
		m.refreshDetail()
		return m, nil
	case key.Matches(msg, m.keys.Back):
		m.mode = modeBrowse
		m.data.Blur()
		m.refreshDetail()
		return m, nil
	}
	var cmd tea.Cmd
	m.data, cmd = m.data.Update(msg)
	return m, cmd
}

func (m Model) updateStepInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm), key.Matches(msg, m.keys.Save):
		if ed := m.stepEditor(); ed != nil {
			m.setError(ed.Update(m.stepCursor+1, m.editField, m.stepInput.Value()))
		}
		m.mode = modeBrowse
		m.stepInput.Blur()
		m.refreshDetail()
		return m, nil
	case key.Matches(msg, m.keys.Back):
		m.mode = modeBrowse
		m.stepInput.Blur()
		m.refreshDetail()
		return m, nil
	}
	var cmd tea.Cmd
	m.stepInput, cmd = m.stepInput.Update(msg)
	return m, cmd
}

// SelectedID returns the ID of the highlighted case, or "" when the list is
// empty.
func (m Model) SelectedID() string {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return ""
	}
	return m.rows[m.selected].TestCase.ID
}

// Filter returns the filter currently applied to the list.
func (m Model) Filter() casestate.Filter {
	f := casestate.Filter{Status: types.StatusAll, Search: m.search.Value()}
	if m.categoryIdx > 0 {
		f.Category = m.store.Catalog().Categories()[m.categoryIdx-1]
	}
	if m.statusIdx > 0 {
		f.Status = types.LifecycleStatuses[m.statusIdx-1]
	}
	return f
}

// reload recomputes the visible rows and keeps the selection on the same
// case when it is still visible.
func (m *Model) reload() error {
	prev := m.SelectedID()
	rows, err := m.store.VisibleRows(m.Filter())
	if err != nil {
		return err
	}
	m.rows = rows
	m.selected = 0
	for i, r := range rows {
		if r.TestCase.ID == prev {
			m.selected = i
			break
		}
	}
	if id := m.SelectedID(); id != prev {
		m.stepCursor = 0
		m.validation = nil
		if id != "" {
			m.setError(m.engine.Select(id))
		}
	}
	return nil
}

func (m *Model) move(delta int) {
	next := m.selected + delta
	if next < 0 || next >= len(m.rows) {
		return
	}
	m.selected = next
	m.stepCursor = 0
	m.validation = nil
	m.setError(m.engine.Select(m.SelectedID()))
}

func (m *Model) moveStep(delta int) {
	steps := m.steps()
	next := m.stepCursor + delta
	if next < 0 || next >= len(steps) {
		return
	}
	m.stepCursor = next
}

// poll samples the engine and refreshes what a running case changes.
func (m *Model) poll() {
	run, ok := m.engine.Current()
	if !ok {
		return
	}
	changed := run.State != m.lastRun.State || run.Ticks != m.lastRun.Ticks || run.RunID != m.lastRun.RunID
	m.lastRun = run
	if !changed {
		return
	}
	if run.State != types.RunStateActive {
		m.setError(m.reload())
	}
	m.refreshDetail()
}

func (m *Model) startRun() {
	id := m.SelectedID()
	if id == "" {
		return
	}
	run, err := m.engine.Start(m.ctx, id)
	if err != nil {
		m.setError(err)
		return
	}
	m.lastRun = run
	m.stepCursor = 0
	m.flash = fmt.Sprintf("Running %s", id)
	m.setError(m.reload())
}

func (m *Model) markStatus() {
	id := m.SelectedID()
	if id == "" {
		return
	}
	// Manual marks toggle between passed and failed.
	next := types.StatusPassed
	if m.rows[m.selected].Status == types.StatusPassed {
		next = types.StatusFailed
	}
	if err := m.store.SetLifecycleStatus(id, next); err != nil {
		m.setError(err)
		return
	}
	m.flash = fmt.Sprintf("%s marked %s", id, types.StatusLabel(next))
	m.setError(m.reload())
}

func (m *Model) addStep() {
	ed := m.stepEditor()
	if ed == nil {
		return
	}
	step, err := ed.Add()
	if err != nil {
		m.setError(err)
		return
	}
	m.stepCursor = step.Number - 1
}

func (m *Model) removeStep() {
	ed := m.stepEditor()
	if ed == nil {
		return
	}
	if err := ed.Remove(m.stepCursor + 1); err != nil {
		m.setError(err)
		return
	}
	if n := len(m.steps()); m.stepCursor >= n && n > 0 {
		m.stepCursor = n - 1
	}
}

func (m *Model) cycleStepStatus() {
	ed := m.stepEditor()
	steps := m.steps()
	if ed == nil || m.stepCursor >= len(steps) {
		return
	}
	order := []string{types.RunStatusNotRun, types.RunStatusPass, types.RunStatusFail, types.RunStatusSkip}
	next := order[0]
	for i, s := range order {
		if s == steps[m.stepCursor].RunStatus {
			next = order[(i+1)%len(order)]
			break
		}
	}
	m.setError(ed.Update(m.stepCursor+1, types.FieldRunStatus, next))
}

func (m *Model) beginStepEdit(field string) tea.Cmd {
	steps := m.steps()
	if m.stepCursor >= len(steps) {
		return nil
	}
	st := steps[m.stepCursor]
	m.editField = field
	switch field {
	case types.FieldExpectedResult:
		m.stepInput.Prompt = fmt.Sprintf("Step %d expected: ", st.Number)
		m.stepInput.SetValue(st.ExpectedResult)
	default:
		m.stepInput.Prompt = fmt.Sprintf("Step %d action: ", st.Number)
		m.stepInput.SetValue(st.Action)
	}
	m.mode = modeEditStep
	return m.stepInput.Focus()
}

func (m *Model) beginDataEdit() tea.Cmd {
	ed := m.dataEditor()
	if ed == nil {
		return nil
	}
	text, err := ed.Text()
	if err != nil {
		m.setError(err)
		return nil
	}
	m.data.SetValue(text)
	m.mode = modeEditData
	return m.data.Focus()
}

func (m *Model) validate() {
	ed := m.dataEditor()
	if ed == nil {
		return
	}
	v, err := ed.Validate()
	if err != nil {
		m.setError(err)
		return
	}
	m.validation = &v
}

func (m *Model) format() {
	ed := m.dataEditor()
	if ed == nil {
		return
	}
	v, err := ed.Format()
	if err != nil {
		m.setError(err)
		return
	}
	m.validation = &v
}

func (m *Model) resetData() {
	ed := m.dataEditor()
	if ed == nil {
		return
	}
	if err := ed.Reset(); err != nil {
		m.setError(err)
		return
	}
	m.validation = nil
	m.flash = "Test data reset to default"
}

func (m *Model) draftDefect() {
	id := m.SelectedID()
	if id == "" {
		return
	}
	d, err := m.drafter.Draft(id)
	if errors.Is(err, types.ErrNoFailedRun) {
		m.flash = "No failed run to draft a defect from"
		return
	}
	if err != nil {
		m.setError(err)
		return
	}
	m.draft = &d
	m.mode = modeDefect
	m.detail.GotoTop()
}

func (m *Model) exportAll() {
	doc, err := export.Build(m.store)
	if err != nil {
		m.setError(err)
		return
	}
	path, err := export.WriteFile(m.exportDir, doc, m.exportFormat)
	if err != nil {
		m.setError(err)
		return
	}
	m.logger.Info("exported results", "path", path, "records", doc.Total)
	m.flash = "Exported to " + path
}

func (m Model) steps() []types.Step {
	id := m.SelectedID()
	if id == "" {
		return nil
	}
	steps, err := m.store.EffectiveSteps(id)
	if err != nil {
		return nil
	}
	return steps
}

func (m Model) stepEditor() *editor.StepEditor {
	id := m.SelectedID()
	if id == "" {
		return nil
	}
	ed, err := editor.NewStepEditor(m.store, id)
	if err != nil {
		return nil
	}
	return ed
}

func (m Model) dataEditor() *editor.DataEditor {
	id := m.SelectedID()
	if id == "" {
		return nil
	}
	ed, err := editor.NewDataEditor(m.store, id)
	if err != nil {
		return nil
	}
	return ed
}

func (m *Model) setError(err error) {
	if err != nil {
		m.err = err
		m.logger.Warn("workbench action failed", "error", err)
	}
}
