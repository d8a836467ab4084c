package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/internal/catalog"
	"github.com/mesh-intelligence/workbench/internal/memory"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

var exportedAt = time.Date(2026, 7, 14, 8, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *casestate.Store {
	t.Helper()
	b := memory.NewBackend()
	require.NoError(t, b.Attach(types.DefaultConfig()))
	t.Cleanup(func() { b.Detach() })

	s, err := casestate.New(catalog.MustDefault(), b)
	require.NoError(t, err)
	return s
}

// touchedStore returns a store with a mix of overrides and statuses.
func touchedStore(t *testing.T) *casestate.Store {
	t.Helper()
	s := newStore(t)
	require.NoError(t, s.SetTestData("UC-001", "{ not json\n  at all"))
	require.NoError(t, s.SetLifecycleStatus("UC-001", types.StatusFailed))
	require.NoError(t, s.UpdateStep("UC-015", 3, types.FieldRunStatus, types.RunStatusFail))
	require.NoError(t, s.SetLifecycleStatus("UC-015", types.StatusFailed))
	require.NoError(t, s.SetLifecycleStatus("UC-030", types.StatusPassed))
	require.NoError(t, s.SetLifecycleStatus("UC-031", types.StatusInProgress))
	require.NoError(t, s.SetSteps("UC-060", []types.Step{}))
	return s
}

func TestBuild(t *testing.T) {
	s := touchedStore(t)
	doc, err := Build(s, WithClock(func() time.Time { return exportedAt }))
	require.NoError(t, err)

	assert.Equal(t, exportedAt, doc.ExportedAt)
	assert.Equal(t, 60, doc.Total)
	require.Len(t, doc.Records, 60)
	assert.Equal(t, Summary{Passed: 1, Failed: 2, InProgress: 1, NotStarted: 56}, doc.Summary)

	first := doc.Records[0]
	assert.Equal(t, "UC-001", first.ID)
	assert.Equal(t, types.StatusFailed, first.LifecycleStatus)
	assert.Equal(t, "{ not json\n  at all", first.TestData)

	tc, err := s.TestCase("UC-002")
	require.NoError(t, err)
	second := doc.Records[1]
	assert.Equal(t, tc.Title, second.Title)
	assert.Equal(t, tc.Category, second.Category)
	assert.Equal(t, tc.Priority, second.Priority)
	assert.Equal(t, tc.DefaultTestData, second.TestData)
	assert.Equal(t, types.StatusNotStarted, second.LifecycleStatus)
	assert.Len(t, second.Steps, len(tc.DefaultSteps))

	assert.Equal(t, types.RunStatusFail, doc.Records[14].Steps[2].RunStatus)
	assert.NotNil(t, doc.Records[59].Steps)
	assert.Empty(t, doc.Records[59].Steps)

	for i, rec := range doc.Records {
		assert.Equal(t, catalog.MustDefault().ListAll()[i].ID, rec.ID, "records follow catalog order")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc, err := Build(touchedStore(t), WithClock(func() time.Time { return exportedAt }))
	require.NoError(t, err)

	for _, format := range []string{types.FormatJSON, types.FormatYAML, types.FormatJSONL} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, doc, format))

			got, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, doc, got)
		})
	}
}

func TestJSONFieldNames(t *testing.T) {
	doc, err := Build(newStore(t), WithClock(func() time.Time { return exportedAt }))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc, types.FormatJSON))

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &top))
	for _, key := range []string{"exported_at", "total", "summary", "records"} {
		assert.Contains(t, top, key)
	}

	var summary map[string]int
	require.NoError(t, json.Unmarshal(top["summary"], &summary))
	assert.Equal(t, map[string]int{"passed": 0, "failed": 0, "in_progress": 0, "not_started": 60}, summary)

	var records []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(top["records"], &records))
	require.NotEmpty(t, records)
	for _, key := range []string{"id", "title", "category", "priority", "status", "steps", "test_data"} {
		assert.Contains(t, records[0], key)
	}
	assert.NotContains(t, records[0], "testData")

	var steps []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(records[0]["steps"], &steps))
	require.NotEmpty(t, steps)
	for _, key := range []string{"step_number", "action", "expected_result", "run_status"} {
		assert.Contains(t, steps[0], key)
	}
}

func TestNonASCIITestDataRoundTrips(t *testing.T) {
	s := newStore(t)
	data := "{\"payee\": \"Zoë Müller\", \"memo\": \"日本円 → €\", \"tab\": \"a\tb\"}"
	require.NoError(t, s.SetTestData("UC-020", data))
	doc, err := Build(s, WithClock(func() time.Time { return exportedAt }))
	require.NoError(t, err)

	for _, format := range []string{types.FormatJSON, types.FormatYAML, types.FormatJSONL} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, doc, format))
			got, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, data, got.Records[19].TestData)
		})
	}
}

func TestJSONLHasOneLinePerRecord(t *testing.T) {
	doc, err := Build(newStore(t), WithClock(func() time.Time { return exportedAt }))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc, types.FormatJSONL))
	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	assert.Len(t, lines, 61)
	for _, l := range lines {
		assert.True(t, json.Valid(l))
	}
}

func TestDecodeJSONLErrors(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil), types.FormatJSONL)
	assert.Error(t, err, "missing header")

	_, err = Decode(bytes.NewBufferString("{\"total\":1}\n{bad\n"), types.FormatJSONL)
	assert.Error(t, err)
}

func TestUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Encode(&buf, Document{}, "xml"), types.ErrInvalidFormat)
	_, err := Decode(&buf, "xml")
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "json", want: types.FormatJSON},
		{in: "JSON", want: types.FormatJSON},
		{in: ".yml", want: types.FormatYAML},
		{in: "yaml", want: types.FormatYAML},
		{in: ".jsonl", want: types.FormatJSONL},
		{in: "csv", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteFile(t *testing.T) {
	doc, err := Build(touchedStore(t), WithClock(func() time.Time { return exportedAt }))
	require.NoError(t, err)

	for _, format := range []string{types.FormatJSON, types.FormatYAML, types.FormatJSONL} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			path, err := WriteFile(dir, doc, format)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "test-results."+format), path)

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, doc, got)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temp files are left behind")
		})
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t)

	doc, err := Build(s, WithClock(func() time.Time { return exportedAt }))
	require.NoError(t, err)
	_, err = WriteFile(dir, doc, types.FormatJSON)
	require.NoError(t, err)

	require.NoError(t, s.SetLifecycleStatus("UC-001", types.StatusPassed))
	doc, err = Build(s, WithClock(func() time.Time { return exportedAt.Add(time.Hour) }))
	require.NoError(t, err)
	path, err := WriteFile(dir, doc, types.FormatJSON)
	require.NoError(t, err)

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Summary.Passed)
	assert.Equal(t, exportedAt.Add(time.Hour), got.ExportedAt)
}

func TestWriteFileRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, Document{}, "xml")
	assert.ErrorIs(t, err, types.ErrInvalidFormat)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
