// Package types defines the Backend and StateTable interfaces, the catalog
// and overlay entity types, and standard errors for the test-case workbench.
//
// A TestCase is immutable catalog data. A CaseState is the per-case overlay
// of edits and lifecycle status; the effective value of any field is the
// override when present and the catalog default otherwise.
package types
