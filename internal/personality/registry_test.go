package personality

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListReturnsBuiltinsInOrder(t *testing.T) {
	r := NewRegistry()
	list := r.List()
	require.Len(t, list, 5)

	ids := make([]string, len(list))
	for i, d := range list {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"sustainability", "equity", "community", "innovation", "efficiency"}, ids)

	// The generic fallback is not listed.
	for _, d := range list {
		assert.NotEqual(t, DefaultID, d.ID)
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry()

	d, err := r.Get("innovation")
	require.NoError(t, err)
	assert.Equal(t, "InnovationEngine", d.Name)
	assert.NotEmpty(t, d.Traits)

	_, err = r.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveNeverFails(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "equity", r.Resolve("equity").ID)
	assert.Equal(t, DefaultID, r.Resolve("unknown").ID)
	assert.Equal(t, DefaultID, r.Resolve("").ID)

	// The fallback carries no traits, so prompts render without a
	// personality block.
	assert.Empty(t, r.Resolve("unknown").Traits)
}

func TestPrinciplesKeysOnlyWhereExpected(t *testing.T) {
	r := NewRegistry()

	withPrinciples := map[string]bool{}
	for _, d := range r.List() {
		if d.PrinciplesKey != "" {
			withPrinciples[d.ID] = true
		}
	}
	assert.Equal(t, map[string]bool{"community": true, "efficiency": true}, withPrinciples)
}

func TestCatalogAppendsAndOverrides(t *testing.T) {
	catalog := `
personalities:
  - id: budget-hawk
    name: BudgetHawk
    tags: ["Cost Control", "Audit Trails"]
    traits: |
      - You scrutinize every line item
  - id: equity
    name: EquityPlus
    tags: ["Expanded Equity Analysis"]
`
	path := filepath.Join(t.TempDir(), "personalities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))

	r, err := NewRegistryWithCatalog(path)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 6)

	// New entry appended after the builtins.
	assert.Equal(t, "budget-hawk", list[5].ID)
	assert.Equal(t, "BudgetHawk", list[5].Name)
	assert.Contains(t, list[5].Traits, "scrutinize")

	// Existing entry overridden in place.
	overridden, err := r.Get("equity")
	require.NoError(t, err)
	assert.Equal(t, "EquityPlus", overridden.Name)
	assert.Equal(t, 1, indexOf(list, "equity"))
}

func TestCatalogEntryWithoutIDRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personalities.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personalities:\n  - name: Nameless\n"), 0o644))

	_, err := NewRegistryWithCatalog(path)
	assert.Error(t, err)
}

func TestCatalogDefaultsNameToID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personalities.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personalities:\n  - id: terse\n"), 0o644))

	r, err := NewRegistryWithCatalog(path)
	require.NoError(t, err)

	d, err := r.Get("terse")
	require.NoError(t, err)
	assert.Equal(t, "terse", d.Name)
}

func TestEmptyCatalogPathMeansBuiltinsOnly(t *testing.T) {
	r, err := NewRegistryWithCatalog("")
	require.NoError(t, err)
	assert.Len(t, r.List(), 5)
}

func TestMissingCatalogFileIsAnError(t *testing.T) {
	_, err := NewRegistryWithCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func indexOf(list []Descriptor, id string) int {
	for i, d := range list {
		if d.ID == id {
			return i
		}
	}
	return -1
}
