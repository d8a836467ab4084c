package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/workbench/pkg/types"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	all := c.ListAll()
	assert.Len(t, all, 60)
	assert.Equal(t, 60, c.Len())
	assert.Equal(t, "UC-001", all[0].ID)
	assert.Equal(t, "UC-060", all[59].ID)
	assert.Equal(t, types.Categories, c.Categories())

	for _, tc := range all {
		t.Run(tc.ID, func(t *testing.T) {
			assert.NotEmpty(t, tc.Title)
			assert.NotEmpty(t, tc.DefaultSteps)
			assert.True(t, json.Valid([]byte(tc.DefaultTestData)), "default test data should be valid JSON")
			for i, s := range tc.DefaultSteps {
				assert.Equal(t, i+1, s.Number)
			}
			assert.NotEmpty(t, tc.ExpectedAPIContract.Method)
			assert.NotEmpty(t, tc.ExpectedAPIContract.Endpoint)
		})
	}
}

func TestGet(t *testing.T) {
	c := MustDefault()

	tc, err := c.Get("UC-015")
	require.NoError(t, err)
	assert.Equal(t, "UC-015", tc.ID)
	assert.Len(t, tc.DefaultSteps, 5)

	_, err = c.Get("UC-999")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.False(t, c.Has("UC-999"))
	assert.True(t, c.Has("UC-001"))
}

func TestGetReturnsCopies(t *testing.T) {
	c := MustDefault()

	tc, err := c.Get("UC-001")
	require.NoError(t, err)
	tc.DefaultSteps[0].Action = "changed"
	tc.Preconditions[0] = "changed"

	again, err := c.Get("UC-001")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again.DefaultSteps[0].Action)
	assert.NotEqual(t, "changed", again.Preconditions[0])

	all := c.ListAll()
	all[0].Title = "changed"
	assert.NotEqual(t, "changed", c.ListAll()[0].Title)
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "malformed yaml",
			yaml: "cases: [",
		},
		{
			name: "missing id",
			yaml: `
cases:
  - title: x
    category: accounts
    priority: P1`,
		},
		{
			name: "duplicate id",
			yaml: `
cases:
  - {id: A, category: accounts, priority: P1}
  - {id: A, category: accounts, priority: P1}`,
		},
		{
			name: "unknown category",
			yaml: `
cases:
  - {id: A, category: mortgages, priority: P1}`,
		},
		{
			name: "unknown priority",
			yaml: `
cases:
  - {id: A, category: accounts, priority: P9}`,
		},
		{
			name: "gap in step numbers",
			yaml: `
cases:
  - id: A
    category: accounts
    priority: P1
    steps:
      - {step: 1, action: a, expected: b}
      - {step: 3, action: a, expected: b}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			assert.ErrorIs(t, err, types.ErrInvalidCatalog)
		})
	}
}

func TestLoadPreservesOrder(t *testing.T) {
	c, err := Load([]byte(`
cases:
  - {id: Z-1, category: loans, priority: P3}
  - {id: A-1, category: accounts, priority: P1}`))
	require.NoError(t, err)

	all := c.ListAll()
	require.Len(t, all, 2)
	assert.Equal(t, "Z-1", all[0].ID)
	assert.Equal(t, "A-1", all[1].ID)
	assert.Equal(t, []string{types.CategoryAccounts, types.CategoryLoans}, c.Categories())
}
