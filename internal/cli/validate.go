package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workbench/internal/editor"
)

type validateOptions struct {
	dataFile string
	format   bool
}

// validateResult is the JSON form of a validation.
type validateResult struct {
	CaseID string `json:"case_id"`
	editor.Validation
	TestData string `json:"test_data,omitempty"`
}

func newValidateCmd(a *app) *cobra.Command {
	var opts validateOptions
	cmd := &cobra.Command{
		Use:   "validate <id>",
		Short: "Check that a case's test data is well-formed JSON",
		Long: `Validate parses the effective test data of a case and reports the first
syntax error with its line and column. With --data-file, the file's
contents (or stdin for -) are edited into the case first. With --format,
valid data is re-indented and printed.

The command exits with status 1 when the data is not valid JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, a, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.dataFile, "data-file", "", "read test data from a file, or - for stdin")
	cmd.Flags().BoolVar(&opts.format, "format", false, "print the data re-indented when valid")
	return cmd
}

func runValidate(cmd *cobra.Command, a *app, id string, opts validateOptions) error {
	store, err := a.open()
	if err != nil {
		return err
	}
	ed, err := editor.NewDataEditor(store, id)
	if err != nil {
		return err
	}

	if opts.dataFile != "" {
		text, err := readDataFile(cmd.InOrStdin(), opts.dataFile)
		if err != nil {
			return err
		}
		if err := ed.Edit(text); err != nil {
			return err
		}
	}

	var v editor.Validation
	if opts.format {
		v, err = ed.Format()
	} else {
		v, err = ed.Validate()
	}
	if err != nil {
		return err
	}

	res := validateResult{CaseID: id, Validation: v}
	if opts.format && v.Valid {
		if res.TestData, err = ed.Text(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else if v.Valid {
		fmt.Fprintf(out, "%s: %s\n", id, passColor.Sprint(v.Message))
		if res.TestData != "" {
			fmt.Fprintln(out, res.TestData)
		}
	} else {
		fmt.Fprintf(out, "%s: %s\n", id, failColor.Sprint(v.Message))
	}

	if !v.Valid {
		return fmt.Errorf("test data of %s is not valid JSON", id)
	}
	return nil
}

func readDataFile(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == stdioPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read test data: %w", err)
	}
	return string(data), nil
}
