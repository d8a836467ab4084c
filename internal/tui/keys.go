package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Search     key.Binding
	Category   key.Binding
	Status     key.Binding
	Run        key.Binding
	Cancel     key.Binding
	Mark       key.Binding
	StepPrev   key.Binding
	StepNext   key.Binding
	AddStep    key.Binding
	RemoveStep key.Binding
	EditAction key.Binding
	EditExpect key.Binding
	StepStatus key.Binding
	EditData   key.Binding
	Validate   key.Binding
	Format     key.Binding
	ResetData  key.Binding
	Defect     key.Binding
	Export     key.Binding
	Save       key.Binding
	Confirm    key.Binding
	Back       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Category: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "category"),
		),
		Status: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "status filter"),
		),
		Run: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "run"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop run"),
		),
		Mark: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark passed/failed"),
		),
		StepPrev: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev step"),
		),
		StepNext: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next step"),
		),
		AddStep: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add step"),
		),
		RemoveStep: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "remove step"),
		),
		EditAction: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit action"),
		),
		EditExpect: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "edit expected"),
		),
		StepStatus: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "step status"),
		),
		EditData: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "edit data"),
		),
		Validate: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "validate"),
		),
		Format: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "format"),
		),
		ResetData: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reset data"),
		),
		Defect: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "defect draft"),
		),
		Export: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "export"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Search, k.Run, k.EditData, k.Defect, k.Export, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Search, k.Category, k.Status},
		{k.Run, k.Cancel, k.Mark, k.Defect, k.Export},
		{k.StepPrev, k.StepNext, k.AddStep, k.RemoveStep, k.EditAction, k.EditExpect, k.StepStatus},
		{k.EditData, k.Validate, k.Format, k.ResetData},
		{k.Help, k.Quit},
	}
}

var _ help.KeyMap = keyMap{}
