package casestate

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Filter selects a subset of the catalog. An empty Category or Status, or
// Status "all", matches every case. Search is a case-insensitive substring
// matched against the ID and the title; an empty term matches everything.
type Filter struct {
	Category string
	Status   string
	Search   string
}

// Normalize validates the status and returns the filter with the status in
// canonical form. Returns ErrInvalidStatus for unknown statuses.
func (f Filter) Normalize() (Filter, error) {
	if f.Status == "" {
		f.Status = types.StatusAll
		return f, nil
	}
	status, err := types.ParseStatus(f.Status)
	if err != nil {
		return f, err
	}
	f.Status = status
	return f, nil
}

// Visible returns the catalog cases that pass every criterion of f, in
// catalog order. The result is a pure projection: it does not change any
// state and repeated calls with the same filter agree.
func (s *Store) Visible(f Filter) ([]types.TestCase, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	inStatus, err := s.statusMatcher(f.Status)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	term := fold.String(f.Search)

	visible := []types.TestCase{}
	for _, tc := range s.catalog.ListAll() {
		if f.Category != "" && tc.Category != f.Category {
			continue
		}
		if !inStatus(tc.ID) {
			continue
		}
		if term != "" &&
			!strings.Contains(fold.String(tc.ID), term) &&
			!strings.Contains(fold.String(tc.Title), term) {
			continue
		}
		visible = append(visible, tc)
	}
	return visible, nil
}

// Row is a visible case joined with its lifecycle status.
type Row struct {
	TestCase types.TestCase
	Status   string
}

// VisibleRows is Visible with each case's lifecycle status attached.
func (s *Store) VisibleRows(f Filter) ([]Row, error) {
	visible, err := s.Visible(f)
	if err != nil {
		return nil, err
	}
	overlays, err := s.overlays()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(visible))
	for i, tc := range visible {
		rows[i] = Row{TestCase: tc, Status: statusOf(overlays, tc.ID)}
	}
	return rows, nil
}
