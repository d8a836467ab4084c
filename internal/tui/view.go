package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mesh-intelligence/workbench/internal/defect"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Layout constants in terminal cells.
const (
	minListWidth = 30
	maxListWidth = 56
	chromeHeight = 7 // title, filter bar, help, borders
)

func (m Model) listWidth() int {
	w := m.width * 2 / 5
	if w < minListWidth {
		w = minListWidth
	}
	if w > maxListWidth {
		w = maxListWidth
	}
	return w
}

func (m Model) contentHeight() int {
	h := m.height - chromeHeight
	if m.help.ShowAll {
		h -= 4
	}
	if h < 5 {
		h = 5
	}
	return h
}

// layout sizes the sub-components after a resize.
func (m *Model) layout() {
	detailWidth := m.width - m.listWidth() - 4
	if detailWidth < 20 {
		detailWidth = 20
	}
	m.detail.Width = detailWidth - 4
	m.detail.Height = m.contentHeight() - 2
	m.data.SetWidth(detailWidth - 4)
	m.data.SetHeight(m.contentHeight() - 6)
	m.progress.Width = detailWidth - 12
	m.help.Width = m.width
}

// refreshDetail re-renders the detail pane for the selected case.
func (m *Model) refreshDetail() {
	m.detail.SetContent(m.renderDetail())
}

func (m Model) renderDetail() string {
	if m.mode == modeDefect && m.draft != nil {
		return defect.Markdown(*m.draft)
	}
	id := m.SelectedID()
	if id == "" {
		return "No test case matches the current filter."
	}
	tc, err := m.store.TestCase(id)
	if err != nil {
		return err.Error()
	}
	state, err := m.store.State(id)
	if err != nil {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(tc.ID+"  "+tc.Title))
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("priority"), tc.Priority,
		labelStyle.Render("category"), tc.Category,
		labelStyle.Render("status"), colorStatus(state.LifecycleStatus, types.StatusLabel(state.LifecycleStatus)))
	if tc.Actor != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("actor"), tc.Actor)
	}
	if tc.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", tc.Description)
	}
	if len(tc.Preconditions) > 0 {
		fmt.Fprintf(&b, "\n%s\n", labelStyle.Render("Preconditions"))
		for _, p := range tc.Preconditions {
			fmt.Fprintf(&b, "  • %s\n", p)
		}
	}

	if run, ok := m.engine.Current(); ok && run.CaseID == id {
		fmt.Fprintf(&b, "\n%s %s %s\n", labelStyle.Render("Run"), run.State, m.progress.ViewAs(run.Progress()))
		if run.State == types.RunStateFinalized {
			fmt.Fprintf(&b, "%s %s in %.1fs\n", labelStyle.Render("Outcome"), colorStatus(run.Outcome, run.Outcome), run.DurationSeconds)
		}
	} else if state.LastRun != nil {
		fmt.Fprintf(&b, "\n%s %s at %s\n", labelStyle.Render("Last run"),
			colorStatus(state.LastRun.Outcome, state.LastRun.Outcome),
			state.LastRun.FinishedAt.Local().Format("15:04:05"))
	}

	fmt.Fprintf(&b, "\n%s\n", labelStyle.Render("Steps"))
	steps, err := m.store.EffectiveSteps(id)
	if err != nil {
		return err.Error()
	}
	if len(steps) == 0 {
		b.WriteString("  (no steps)\n")
	}
	for i, st := range steps {
		cursor := "  "
		if i == m.stepCursor {
			cursor = cursorStyle.Render("▸ ")
		}
		fmt.Fprintf(&b, "%s%d. %s %s\n", cursor, st.Number, st.Action, colorStatus(st.RunStatus, "["+st.RunStatus+"]"))
		fmt.Fprintf(&b, "     %s %s\n", labelStyle.Render("expect"), st.ExpectedResult)
	}

	fmt.Fprintf(&b, "\n%s", labelStyle.Render("Test data"))
	if state.TestDataOverride != nil {
		b.WriteString(labelStyle.Render(" (edited)"))
	}
	b.WriteString("\n")
	if m.validation != nil {
		if m.validation.Valid {
			fmt.Fprintf(&b, "%s\n", colorStatus(types.StatusPassed, "✓ "+m.validation.Message))
		} else {
			fmt.Fprintf(&b, "%s\n", colorStatus(types.StatusFailed, "✗ "+m.validation.Message))
		}
	}
	data, err := m.store.EffectiveTestData(id)
	if err != nil {
		return err.Error()
	}
	fmt.Fprintf(&b, "%s\n", data)

	api := tc.ExpectedAPIContract
	if api.Endpoint != "" {
		fmt.Fprintf(&b, "\n%s %s %s → %d\n", labelStyle.Render("API"), api.Method, api.Endpoint, api.ResponseStatus)
	}
	return b.String()
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading workbench..."
	}

	title := titleStyle.Render("QA Workbench")
	counts := m.countsLine()
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", counts)

	filter := m.filterLine()

	h := m.contentHeight()
	listPanel := listStyle.Width(m.listWidth()).Height(h).Render(m.renderList(h))

	var detail string
	switch m.mode {
	case modeEditData:
		detail = headerStyle.Render("Edit test data ("+m.SelectedID()+")") + "\n\n" + m.data.View() +
			"\n" + labelStyle.Render("ctrl+s save • esc cancel")
	case modeEditStep:
		detail = m.detail.View() + "\n" + m.stepInput.View()
	default:
		detail = m.detail.View()
	}
	detailPanel := detailStyle.Width(m.width - m.listWidth() - 4).Height(h).Render(detail)

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, detailPanel)

	footer := m.help.View(m.keys)
	if m.err != nil {
		footer = errorStyle.Render("error: "+m.err.Error()) + "\n" + footer
	} else if m.flash != "" {
		footer = flashStyle.Render(m.flash) + "\n" + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, filter, panels, footer)
}

func (m Model) countsLine() string {
	counts, err := m.store.Counts()
	if err != nil {
		return ""
	}
	parts := make([]string, 0, len(types.LifecycleStatuses))
	for _, s := range types.LifecycleStatuses {
		parts = append(parts, colorStatus(s, fmt.Sprintf("%s %d", types.StatusLabel(s), counts[s])))
	}
	return strings.Join(parts, "  ")
}

func (m Model) filterLine() string {
	f := m.Filter()
	category := f.Category
	if category == "" {
		category = "all"
	}
	search := m.search.Value()
	if m.mode == modeSearch {
		search = m.search.View()
	}
	return filterStyle.Render(fmt.Sprintf("category: %s  status: %s  search: %s  (%d shown)",
		category, f.Status, search, len(m.rows)))
}

func (m Model) renderList(height int) string {
	width := m.listWidth() - 4
	lines := make([]string, 0, len(m.rows))

	// Keep the selection in view.
	start := 0
	if m.selected >= height {
		start = m.selected - height + 1
	}
	for i := start; i < len(m.rows) && len(lines) < height; i++ {
		r := m.rows[i]
		label := fmt.Sprintf("%s %s", r.TestCase.ID, r.TestCase.Title)
		label = runewidth.Truncate(label, width-2, "…")
		if i == m.selected {
			lines = append(lines, selectedStyle.Width(width).Render(statusIcons[r.Status]+" "+label))
			continue
		}
		lines = append(lines, statusIcon(r.Status)+" "+label)
	}
	if len(lines) == 0 {
		lines = append(lines, labelStyle.Render("no matches"))
	}
	return strings.Join(lines, "\n")
}
