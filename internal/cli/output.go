package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

var (
	passColor  = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	warnColor  = color.New(color.FgYellow)
	idleColor  = color.New(color.FgHiBlack)
	titleColor = color.New(color.Bold)
)

// paint colours text by a lifecycle, run, or step status.
func paint(status, text string) string {
	switch status {
	case types.StatusPassed, types.RunStatusPass:
		return passColor.Sprint(text)
	case types.StatusFailed, types.RunStatusFail:
		return failColor.Sprint(text)
	case types.StatusInProgress, types.RunStateActive:
		return warnColor.Sprint(text)
	default:
		return idleColor.Sprint(text)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
