package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/workbench/internal/casestate"
)

// Validation is the outcome of checking test data. A parse failure is
// reported here and never returned as an error. Line and Column are 1-based
// and zero when Valid.
type Validation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Message text for a successful validation.
const validMessage = "Valid JSON"

// DataEditor edits the effective test data of one case.
type DataEditor struct {
	store  *casestate.Store
	caseID string
}

// NewDataEditor binds a data editor to caseID.
// Returns ErrNotFound if the catalog has no such case.
func NewDataEditor(store *casestate.Store, caseID string) (*DataEditor, error) {
	if _, err := store.TestCase(caseID); err != nil {
		return nil, err
	}
	return &DataEditor{store: store, caseID: caseID}, nil
}

// CaseID returns the case the editor is bound to.
func (e *DataEditor) CaseID() string {
	return e.caseID
}

// Text returns the effective test data.
func (e *DataEditor) Text() (string, error) {
	return e.store.EffectiveTestData(e.caseID)
}

// Edit stores text verbatim as the case's test data.
func (e *DataEditor) Edit(text string) error {
	return e.store.SetTestData(e.caseID, text)
}

// Reset restores the catalog default test data.
func (e *DataEditor) Reset() error {
	return e.store.ResetTestData(e.caseID)
}

// Validate parses the effective test data as JSON. Only store failures are
// returned as errors.
func (e *DataEditor) Validate() (Validation, error) {
	text, err := e.Text()
	if err != nil {
		return Validation{}, err
	}
	return ValidateJSON(text), nil
}

// Format pretty-prints the effective test data with two-space indentation
// and stores the result. Invalid data is left untouched and the failed
// Validation is returned.
func (e *DataEditor) Format() (Validation, error) {
	text, err := e.Text()
	if err != nil {
		return Validation{}, err
	}
	v := ValidateJSON(text)
	if !v.Valid {
		return v, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return Validation{}, fmt.Errorf("formatting test data: %w", err)
	}
	if buf.String() == text {
		return v, nil
	}
	return v, e.Edit(buf.String())
}

// ValidateJSON checks that text is a single well-formed JSON value.
func ValidateJSON(text string) Validation {
	var v any
	err := json.Unmarshal([]byte(text), &v)
	if err == nil {
		return Validation{Valid: true, Message: validMessage}
	}
	var syn *json.SyntaxError
	if !errors.As(err, &syn) {
		return Validation{Message: err.Error()}
	}
	// Offset counts the offending byte.
	line, col := position(text, max(syn.Offset-1, 0))
	return Validation{
		Message: fmt.Sprintf("%s (line %d, column %d)", syn.Error(), line, col),
		Line:    line,
		Column:  col,
	}
}

// position converts a byte offset into a 1-based line and column.
func position(text string, offset int64) (line, col int) {
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	line, col = 1, 1
	for _, r := range text[:offset] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
