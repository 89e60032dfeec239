package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filter-agent/internal/matcher"
	"filter-agent/internal/models"
)

func testFilters() []models.FilterDefinition {
	return []models.FilterDefinition{
		{Name: "companyType", Label: "Company Type", SourceType: models.SourceTypeLens, SourceID: "lens-1"},
		{Name: "region", Label: "Sales Region", SourceType: models.SourceTypeDimensions, SourceID: "dim-7", JoinColumnName: "region_id"},
		{Name: "status", Label: "Account Status", SourceType: models.SourceTypeLens, SourceID: "lens-1"},
	}
}

func newTestCatalog() *Catalog {
	return New(testFilters(), matcher.New(matcher.DefaultThreshold, matcher.DefaultMaxSuggestions))
}

func TestResolveByName(t *testing.T) {
	c := newTestCatalog()

	tests := []struct {
		reference string
		wantName  string
	}{
		{"companyType", "companyType"},
		{"COMPANYTYPE", "companyType"},
		{"  region  ", "region"},
	}

	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			def, ok := c.Resolve(tt.reference)
			require.True(t, ok)
			assert.Equal(t, tt.wantName, def.Name)
		})
	}
}

func TestResolveByLabel(t *testing.T) {
	c := newTestCatalog()

	def, ok := c.Resolve("company type")
	require.True(t, ok)
	assert.Equal(t, "companyType", def.Name)

	def, ok = c.Resolve("Account Status")
	require.True(t, ok)
	assert.Equal(t, "status", def.Name)
}

func TestResolveSubstring(t *testing.T) {
	c := newTestCatalog()

	// Reference contained in a label.
	def, ok := c.Resolve("sales")
	require.True(t, ok)
	assert.Equal(t, "region", def.Name)

	// Label contained in the reference.
	def, ok = c.Resolve("the account status filter")
	require.True(t, ok)
	assert.Equal(t, "status", def.Name)
}

func TestResolveNameBeatsLabel(t *testing.T) {
	filters := []models.FilterDefinition{
		{Name: "owner", Label: "Account Owner"},
		{Name: "accountOwner", Label: "owner"},
	}
	c := New(filters, nil)

	def, ok := c.Resolve("owner")
	require.True(t, ok)
	assert.Equal(t, "owner", def.Name)
}

func TestResolveMiss(t *testing.T) {
	c := newTestCatalog()

	_, ok := c.Resolve("revenue")
	assert.False(t, ok)

	_, ok = c.Resolve("")
	assert.False(t, ok)
}

func TestResolveCollisionKeepsFirst(t *testing.T) {
	filters := []models.FilterDefinition{
		{Name: "status", Label: "Status", SourceID: "first"},
		{Name: "Status", Label: "status", SourceID: "second"},
	}
	c := New(filters, nil)

	def, ok := c.Resolve("status")
	require.True(t, ok)
	assert.Equal(t, "first", def.SourceID)
}

func TestSuggestions(t *testing.T) {
	c := newTestCatalog()

	suggestions := c.Suggestions("company tipe")
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "Company Type", suggestions[0])

	assert.Empty(t, c.Suggestions("zzzzzz"))
	assert.Empty(t, c.Suggestions(""))
}

func TestEmptyCatalog(t *testing.T) {
	c := New(nil, matcher.New(matcher.DefaultThreshold, matcher.DefaultMaxSuggestions))

	assert.Equal(t, 0, c.Len())
	_, ok := c.Resolve("anything")
	assert.False(t, ok)
	assert.Empty(t, c.Suggestions("anything"))
}
