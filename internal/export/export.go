// Package export serializes the effective state of every test case into a
// results document. JSON is the primary format; YAML and JSONL carry the
// same document.
package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Record is the exported view of one test case.
type Record struct {
	ID              string       `json:"id" yaml:"id"`
	Title           string       `json:"title" yaml:"title"`
	Category        string       `json:"category" yaml:"category"`
	Priority        string       `json:"priority" yaml:"priority"`
	LifecycleStatus string       `json:"status" yaml:"status"`
	Steps           []types.Step `json:"steps" yaml:"steps"`
	TestData        string       `json:"test_data" yaml:"test_data"`
}

// Summary counts records by lifecycle status.
type Summary struct {
	Passed     int `json:"passed" yaml:"passed"`
	Failed     int `json:"failed" yaml:"failed"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	NotStarted int `json:"not_started" yaml:"not_started"`
}

// Document is a complete export.
type Document struct {
	ExportedAt time.Time `json:"exported_at" yaml:"exported_at"`
	Total      int       `json:"total" yaml:"total"`
	Summary    Summary   `json:"summary" yaml:"summary"`
	Records    []Record  `json:"records" yaml:"records"`
}

// header is the first line of a JSONL export.
type header struct {
	ExportedAt time.Time `json:"exported_at"`
	Total      int       `json:"total"`
	Summary    Summary   `json:"summary"`
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	now func() time.Time
}

// WithClock sets the time source for ExportedAt.
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Build assembles one record per catalog case, in catalog order, from the
// effective steps, test data, and lifecycle status.
func Build(store *casestate.Store, opts ...Option) (Document, error) {
	o := buildOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	cases := store.Catalog().ListAll()
	doc := Document{
		ExportedAt: o.now().UTC(),
		Total:      len(cases),
		Records:    make([]Record, 0, len(cases)),
	}
	for _, tc := range cases {
		steps, err := store.EffectiveSteps(tc.ID)
		if err != nil {
			return Document{}, err
		}
		data, err := store.EffectiveTestData(tc.ID)
		if err != nil {
			return Document{}, err
		}
		status, err := store.LifecycleStatus(tc.ID)
		if err != nil {
			return Document{}, err
		}
		if steps == nil {
			steps = []types.Step{}
		}
		doc.Records = append(doc.Records, Record{
			ID:              tc.ID,
			Title:           tc.Title,
			Category:        tc.Category,
			Priority:        tc.Priority,
			LifecycleStatus: status,
			Steps:           steps,
			TestData:        data,
		})
		doc.Summary.add(status)
	}
	return doc, nil
}

func (s *Summary) add(status string) {
	switch status {
	case types.StatusPassed:
		s.Passed++
	case types.StatusFailed:
		s.Failed++
	case types.StatusInProgress:
		s.InProgress++
	default:
		s.NotStarted++
	}
}

// FileName returns the export file name for format.
func FileName(format string) string {
	return "test-results." + format
}

// Encode writes doc to w in format. Returns ErrInvalidFormat for unknown
// formats.
func Encode(w io.Writer, doc Document, format string) error {
	switch format {
	case types.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case types.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case types.FormatJSONL:
		return encodeJSONL(w, doc)
	default:
		return fmt.Errorf("%w: %q", types.ErrInvalidFormat, format)
	}
}

// Decode reads a document written by Encode in format.
func Decode(r io.Reader, format string) (Document, error) {
	var doc Document
	switch format {
	case types.FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decoding json: %w", err)
		}
	case types.FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decoding yaml: %w", err)
		}
	case types.FormatJSONL:
		return decodeJSONL(r)
	default:
		return Document{}, fmt.Errorf("%w: %q", types.ErrInvalidFormat, format)
	}
	return doc, nil
}

// encodeJSONL writes the header line followed by one line per record.
func encodeJSONL(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(header{ExportedAt: doc.ExportedAt, Total: doc.Total, Summary: doc.Summary}); err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	for _, rec := range doc.Records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding record %s: %w", rec.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	return nil
}

// decodeJSONL reads a header line and the records that follow. Blank lines
// are skipped.
func decodeJSONL(r io.Reader) (Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var doc Document
	seenHeader := false
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if !seenHeader {
			var h header
			if err := json.Unmarshal(b, &h); err != nil {
				return Document{}, fmt.Errorf("decoding header: %w", err)
			}
			doc.ExportedAt, doc.Total, doc.Summary = h.ExportedAt, h.Total, h.Summary
			seenHeader = true
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return Document{}, fmt.Errorf("decoding line %d: %w", line, err)
		}
		doc.Records = append(doc.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return Document{}, fmt.Errorf("scanning jsonl: %w", err)
	}
	if !seenHeader {
		return Document{}, fmt.Errorf("decoding jsonl: %w", io.ErrUnexpectedEOF)
	}
	if doc.Records == nil {
		doc.Records = []Record{}
	}
	return doc, nil
}

// ParseFormat normalises a format name or file extension ("JSON", ".yml").
func ParseFormat(s string) (string, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	if v == "yml" {
		v = types.FormatYAML
	}
	if !types.ValidFormat(v) {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidFormat, s)
	}
	return v, nil
}
