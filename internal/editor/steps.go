// Package editor provides the step and test data editors bound to a single
// test case. Editors hold no state of their own; every change goes straight
// to the case state store.
package editor

import (
	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// StepEditor edits the effective step list of one case.
type StepEditor struct {
	store  *casestate.Store
	caseID string
}

// NewStepEditor binds a step editor to caseID.
// Returns ErrNotFound if the catalog has no such case.
func NewStepEditor(store *casestate.Store, caseID string) (*StepEditor, error) {
	if _, err := store.TestCase(caseID); err != nil {
		return nil, err
	}
	return &StepEditor{store: store, caseID: caseID}, nil
}

// CaseID returns the case the editor is bound to.
func (e *StepEditor) CaseID() string {
	return e.caseID
}

// Steps returns the current effective steps.
func (e *StepEditor) Steps() ([]types.Step, error) {
	return e.store.EffectiveSteps(e.caseID)
}

// Add appends a placeholder step numbered N+1.
func (e *StepEditor) Add() (types.Step, error) {
	return e.store.AddStep(e.caseID)
}

// Remove deletes step n and renumbers the rest.
func (e *StepEditor) Remove(n int) error {
	return e.store.RemoveStep(e.caseID, n)
}

// Update sets field of step n to value. field accepts the types.Field
// constants and their common spellings ("expectedResult", "status").
func (e *StepEditor) Update(n int, field, value string) error {
	f, err := types.ParseStepField(field)
	if err != nil {
		return err
	}
	return e.store.UpdateStep(e.caseID, n, f, value)
}
