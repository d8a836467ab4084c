package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/internal/catalog"
	"github.com/mesh-intelligence/workbench/internal/engine"
	"github.com/mesh-intelligence/workbench/internal/export"
	"github.com/mesh-intelligence/workbench/internal/memory"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs the root command with args and returns what it wrote to
// stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// configDir writes a config.yaml with a fast tick and the given pass rate.
func configDir(t *testing.T, passRate float64) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`backend: memory
execution:
  interval_ms: 1
  pass_rate: %g
  seed: 7
defect:
  environment: test bench
  severity: major
export:
  format: json
`, passRate)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "workbench v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	out, err := execute(t, "", "--config-dir", dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	var cfg configFile
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, defaultConfigFile(), cfg)

	out, err = execute(t, "", "--config-dir", dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	t.Run("force rewrites a broken config", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend: nope\n"), 0o644))

		_, err := execute(t, "", "--config-dir", dir, "list")
		assert.ErrorIs(t, err, types.ErrBackendUnknown)

		_, err = execute(t, "", "--config-dir", dir, "init", "--force")
		require.NoError(t, err)
		_, err = execute(t, "", "--config-dir", dir, "list")
		assert.NoError(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg types.Config)
		wantErr error
	}{
		{
			name: "missing file uses defaults",
			check: func(t *testing.T, cfg types.Config) {
				assert.Equal(t, types.DefaultConfig().Backend, cfg.Backend)
				assert.Equal(t, types.DefaultInterval, cfg.Execution.Interval)
				assert.Equal(t, types.DefaultPassRate, cfg.Execution.PassRate)
				assert.Equal(t, types.FormatJSON, cfg.Export.Format)
			},
		},
		{
			name: "values from file",
			yaml: "backend: sqlite\nexecution:\n  interval_ms: 50\n  seed: 3\nexport:\n  format: yml\n",
			check: func(t *testing.T, cfg types.Config) {
				assert.Equal(t, types.BackendSQLite, cfg.Backend)
				assert.Equal(t, int64(50), cfg.Execution.Interval.Milliseconds())
				assert.Equal(t, int64(3), cfg.Execution.Seed)
				assert.Equal(t, types.FormatYAML, cfg.Export.Format)
			},
		},
		{name: "unknown backend", yaml: "backend: postgres\n", wantErr: types.ErrBackendUnknown},
		{name: "pass rate above one", yaml: "execution:\n  pass_rate: 1.5\n", wantErr: types.ErrInvalidPassRate},
		{name: "zero interval", yaml: "execution:\n  interval_ms: 0\n", wantErr: types.ErrInvalidInterval},
		{name: "unknown severity", yaml: "defect:\n  severity: urgent\n", wantErr: types.ErrInvalidSeverity},
		{name: "unknown format", yaml: "export:\n  format: csv\n", wantErr: types.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.yaml != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(tt.yaml), 0o644))
			}
			v, err := loadConfig(dir)
			require.NoError(t, err)
			cfg, err := configFromViper(v)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := configDir(t, 1)
	t.Setenv("WORKBENCH_EXECUTION_PASS_RATE", "0.25")
	t.Setenv("WORKBENCH_DEFECT_SEVERITY", "critical")

	v, err := loadConfig(dir)
	require.NoError(t, err)
	cfg, err := configFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Execution.PassRate)
	assert.Equal(t, types.SeverityCritical, cfg.Defect.Severity)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend: [\n"), 0o644))
	_, err := loadConfig(dir)
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "", "--config-dir", configDir(t, 1), "--log-level", "loud", "list")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestList(t *testing.T) {
	dir := configDir(t, 1)

	t.Run("category", func(t *testing.T) {
		out, err := execute(t, "", "--config-dir", dir, "list", "--category", "transfers")
		require.NoError(t, err)
		assert.Contains(t, out, "UC-011")
		assert.NotContains(t, out, "UC-001")
		assert.Contains(t, out, "10 of 60 cases")
	})

	t.Run("json search", func(t *testing.T) {
		out, err := execute(t, "", "--config-dir", dir, "--json", "list", "--search", "schedule", "--category", "transfers")
		require.NoError(t, err)
		var rows []listRow
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		require.Len(t, rows, 2)
		assert.Equal(t, "UC-015", rows[0].ID)
		assert.Equal(t, "UC-016", rows[1].ID)
		assert.Equal(t, types.StatusNotStarted, rows[0].Status)
	})

	t.Run("status filter", func(t *testing.T) {
		out, err := execute(t, "", "--config-dir", dir, "--json", "list", "--status", "failed")
		require.NoError(t, err)
		var rows []listRow
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		assert.Empty(t, rows)
	})

	t.Run("sort by priority", func(t *testing.T) {
		out, err := execute(t, "", "--config-dir", dir, "--json", "list", "--category", "cards", "--sort", "priority")
		require.NoError(t, err)
		var rows []listRow
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		require.Len(t, rows, 10)
		for i := 1; i < len(rows); i++ {
			prev, cur := rows[i-1], rows[i]
			require.LessOrEqual(t, types.ComparePriority(prev.Priority, cur.Priority), 0, "%s before %s", prev.ID, cur.ID)
			if prev.Priority == cur.Priority {
				assert.Less(t, prev.ID, cur.ID, "equal priorities keep catalog order")
			}
		}
	})

	t.Run("errors", func(t *testing.T) {
		_, err := execute(t, "", "--config-dir", dir, "list", "--category", "mortgages")
		assert.Error(t, err)

		_, err = execute(t, "", "--config-dir", dir, "list", "--sort", "title")
		assert.Error(t, err)

		_, err = execute(t, "", "--config-dir", dir, "list", "--status", "done")
		assert.ErrorIs(t, err, types.ErrInvalidStatus)
		assert.Equal(t, exitUserError, exitCode(err))
	})
}

func TestShow(t *testing.T) {
	dir := configDir(t, 1)

	out, err := execute(t, "", "--config-dir", dir, "show", "UC-015")
	require.NoError(t, err)
	assert.Contains(t, out, "UC-015")
	assert.Contains(t, out, "Steps:")
	assert.Contains(t, out, "5. ")
	assert.Contains(t, out, "Test data:")

	out, err = execute(t, "", "--config-dir", dir, "--json", "show", "UC-015")
	require.NoError(t, err)
	var view caseView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "UC-015", view.ID)
	assert.Len(t, view.Steps, 5)
	assert.Equal(t, view.DefaultTestData, view.TestData)

	_, err = execute(t, "", "--config-dir", dir, "show", "UC-999")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestRunFailedWithDefect(t *testing.T) {
	dir := configDir(t, 0)

	out, err := execute(t, "", "--config-dir", dir, "--json", "run", "UC-015", "--defect", "--severity", "Minor")
	require.NoError(t, err)

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, types.RunStateFinalized, res.Run.State)
	assert.Equal(t, types.OutcomeFailed, res.Run.Outcome)
	assert.Equal(t, 10, res.Run.Ticks)
	require.Len(t, res.Steps, 5)
	for _, st := range res.Steps {
		assert.Equal(t, types.RunStatusFail, st.RunStatus)
	}
	require.NotNil(t, res.Defect)
	assert.Equal(t, types.SeverityMinor, res.Defect.Severity)
	assert.Equal(t, "test bench", res.Defect.Environment)
	assert.Equal(t, res.Run.RunID, res.Defect.RunID)
}

func TestRunPassed(t *testing.T) {
	dir := configDir(t, 1)

	out, err := execute(t, "", "--config-dir", dir, "run", "UC-001", "--defect")
	require.NoError(t, err)
	assert.Contains(t, out, "Running UC-001")
	assert.Contains(t, out, "Outcome: PASSED")
	assert.Contains(t, out, "No defect drafted")
}

func TestRunErrors(t *testing.T) {
	dir := configDir(t, 1)

	_, err := execute(t, "", "--config-dir", dir, "run", "UC-999")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = execute(t, "", "--config-dir", dir, "run", "UC-001", "--severity", "blocker")
	assert.ErrorIs(t, err, types.ErrInvalidSeverity)
}

func TestWatchRunDrawsProgress(t *testing.T) {
	b := memory.NewBackend()
	require.NoError(t, b.Attach(types.DefaultConfig()))
	t.Cleanup(func() { b.Detach() })
	store, err := casestate.New(catalog.MustDefault(), b)
	require.NoError(t, err)

	eng := engine.New(store,
		engine.WithInterval(time.Millisecond),
		engine.WithOutcome(engine.FixedOutcomes(types.RunStatusPass)),
	)
	_, err = eng.Start(context.Background(), "UC-001")
	require.NoError(t, err)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	run, err := watchRun(ctx, &out, eng, 2*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, types.RunStateFinalized, run.State)
	assert.Equal(t, types.OutcomePassed, run.Outcome)
	assert.Contains(t, out.String(), "100%")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestProgressBar(t *testing.T) {
	bar := newProgressBar()
	assert.Contains(t, bar.ViewAs(0), "0%")
	assert.Contains(t, bar.ViewAs(0.5), "50%")
	assert.Contains(t, bar.ViewAs(1), "100%")
}

func TestExportRunAll(t *testing.T) {
	dir := configDir(t, 1)
	outDir := t.TempDir()

	out, err := execute(t, "", "--config-dir", dir, "export", "--run-all", "--out", outDir)
	require.NoError(t, err)
	path := filepath.Join(outDir, "test-results.json")
	assert.Contains(t, out, "Exported 60 cases to "+path)

	doc, err := export.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 60, doc.Total)
	assert.Equal(t, 60, doc.Summary.Passed)
	for _, r := range doc.Records {
		for _, st := range r.Steps {
			assert.Equal(t, types.RunStatusPass, st.RunStatus, "%s step %d", r.ID, st.Number)
		}
	}
}

func TestExportStdout(t *testing.T) {
	dir := configDir(t, 1)

	out, err := execute(t, "", "--config-dir", dir, "export", "--format", "jsonl", "--out", "-")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 61)

	doc, err := export.Decode(strings.NewReader(out), types.FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 60, doc.Summary.NotStarted)

	_, err = execute(t, "", "--config-dir", dir, "export", "--format", "csv", "--out", "-")
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

func TestExportJSONSummary(t *testing.T) {
	dir := configDir(t, 0)
	outDir := t.TempDir()

	out, err := execute(t, "", "--config-dir", dir, "--json", "export", "--run-all", "--format", "yaml", "--out", outDir)
	require.NoError(t, err)
	var res exportResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, filepath.Join(outDir, "test-results.yaml"), res.Path)
	assert.Equal(t, 60, res.Summary.Failed)
}

func TestValidate(t *testing.T) {
	dir := configDir(t, 1)

	t.Run("default data is valid", func(t *testing.T) {
		out, err := execute(t, "", "--config-dir", dir, "validate", "UC-001")
		require.NoError(t, err)
		assert.Contains(t, out, "Valid JSON")
	})

	t.Run("invalid data from stdin", func(t *testing.T) {
		out, err := execute(t, "{\n  \"amount\": ,\n}", "--config-dir", dir, "--json", "validate", "UC-001", "--data-file", "-")
		require.Error(t, err)
		assert.Equal(t, exitUserError, exitCode(err))

		var res validateResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.False(t, res.Valid)
		assert.Equal(t, 2, res.Line)
	})

	t.Run("format data file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o644))

		out, err := execute(t, "", "--config-dir", dir, "validate", "UC-001", "--data-file", path, "--format")
		require.NoError(t, err)
		assert.Contains(t, out, "{\n  \"a\": 1\n}")
	})

	t.Run("missing data file", func(t *testing.T) {
		_, err := execute(t, "", "--config-dir", dir, "validate", "UC-001", "--data-file", filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestTUIRequiresTerminal(t *testing.T) {
	_, err := execute(t, "", "--config-dir", configDir(t, 1), "tui")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	base := errors.New("boom")
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitUserError, exitCode(base))
	assert.Equal(t, exitSysError, exitCode(sysError(base)))
	assert.Equal(t, exitSysError, exitCode(fmt.Errorf("wrapped: %w", sysError(base))))
	assert.ErrorIs(t, sysError(base), base)
	assert.Nil(t, sysError(nil))
}
