package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/querygate/internal/models"
)

func facetAttrs(ids ...models.FieldID) []models.FieldID {
	return ids
}

func TestPrepareFacetList_MalformedJSON(t *testing.T) {
	schema := testSchema()

	_, err := PrepareFacetList("not json", schema, facetAttrs(2, 3))

	var facetErr *FacetCountError
	require.ErrorAs(t, err, &facetErr)
	assert.Equal(t, FacetCountJSON, facetErr.Kind)
}

func TestPrepareFacetList_WrongTopLevelShape(t *testing.T) {
	schema := testSchema()

	_, err := PrepareFacetList(`{"a":1}`, schema, facetAttrs(2, 3))

	var facetErr *FacetCountError
	require.ErrorAs(t, err, &facetErr)
	assert.Equal(t, FacetCountUnexpectedToken, facetErr.Kind)
	assert.Equal(t, []string{"[String]"}, facetErr.Expected)
	assert.Contains(t, facetErr.Error(), "[String]")
}

func TestPrepareFacetList_NonStringElement(t *testing.T) {
	schema := testSchema()

	_, err := PrepareFacetList(`["genre", 3]`, schema, facetAttrs(2, 3))

	var facetErr *FacetCountError
	require.ErrorAs(t, err, &facetErr)
	assert.Equal(t, FacetCountUnexpectedToken, facetErr.Kind)
	assert.Equal(t, []string{"String"}, facetErr.Expected)
}

func TestPrepareFacetList_WildcardShortCircuits(t *testing.T) {
	schema := testSchema()

	// Other elements are ignored once a wildcard appears, even invalid ones
	// after it.
	entries, err := PrepareFacetList(`["genre","*","unknown"]`, schema, facetAttrs(2, 3))

	require.NoError(t, err)
	assert.Equal(t, []models.FacetEntry{
		{ID: 2, Name: "genre"},
		{ID: 3, Name: "year"},
	}, entries)
}

func TestPrepareFacetList_WildcardSkipsUnresolvableIDs(t *testing.T) {
	schema := testSchema()

	// Field 9 is not part of the schema; the inconsistency is tolerated.
	entries, err := PrepareFacetList(`["*"]`, schema, facetAttrs(2, 9, 3))

	require.NoError(t, err)
	assert.Equal(t, []models.FacetEntry{
		{ID: 2, Name: "genre"},
		{ID: 3, Name: "year"},
	}, entries)
}

func TestPrepareFacetList_KnownButNotFacetedIsError(t *testing.T) {
	schema := testSchema()

	_, err := PrepareFacetList(`["year"]`, schema, facetAttrs(2))

	var facetErr *FacetCountError
	require.ErrorAs(t, err, &facetErr)
	assert.Equal(t, FacetCountAttributeNotSet, facetErr.Kind)
	assert.Equal(t, "year", facetErr.Attribute)
}

func TestPrepareFacetList_UnknownNameIsSkipped(t *testing.T) {
	schema := testSchema()

	entries, err := PrepareFacetList(`["unknown"]`, schema, facetAttrs(2, 3))

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrepareFacetList_PreservesInputOrderAndDuplicates(t *testing.T) {
	schema := testSchema()

	entries, err := PrepareFacetList(`["year","genre","year"]`, schema, facetAttrs(2, 3))

	require.NoError(t, err)
	assert.Equal(t, []models.FacetEntry{
		{ID: 3, Name: "year"},
		{ID: 2, Name: "genre"},
		{ID: 3, Name: "year"},
	}, entries)
}

func TestParseFacetFilters(t *testing.T) {
	schema := testSchema()
	attrs := facetAttrs(2, 3)

	tests := []struct {
		name    string
		input   string
		want    *models.FacetFilterExpr
		wantErr string
	}{
		{
			name:  "single condition",
			input: `["genre:comedy"]`,
			want: &models.FacetFilterExpr{Clauses: []models.FacetFilterClause{
				{{Field: 2, Name: "genre", Value: "comedy"}},
			}},
		},
		{
			name:  "conjunction of disjunctions",
			input: `["year:2001",["genre:comedy","genre:horror"]]`,
			want: &models.FacetFilterExpr{Clauses: []models.FacetFilterClause{
				{{Field: 3, Name: "year", Value: "2001"}},
				{
					{Field: 2, Name: "genre", Value: "comedy"},
					{Field: 2, Name: "genre", Value: "horror"},
				},
			}},
		},
		{
			name:  "value may contain colons",
			input: `["genre:a:b"]`,
			want: &models.FacetFilterExpr{Clauses: []models.FacetFilterClause{
				{{Field: 2, Name: "genre", Value: "a:b"}},
			}},
		},
		{
			name:    "invalid JSON",
			input:   `genre:comedy`,
			wantErr: "not valid JSON",
		},
		{
			name:    "not an array",
			input:   `"genre:comedy"`,
			wantErr: "expected an array",
		},
		{
			name:    "missing colon",
			input:   `["genre"]`,
			wantErr: "attribute:value form",
		},
		{
			name:    "unknown attribute",
			input:   `["director:lynch"]`,
			wantErr: "attribute director is unknown",
		},
		{
			name:    "attribute not facet enabled",
			input:   `["title:dune"]`,
			wantErr: "attribute title is not set as facet",
		},
		{
			name:    "non string inside clause",
			input:   `[["genre:comedy", 4]]`,
			wantErr: "expected a facet filter string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseFacetFilters(tt.input, schema, attrs)
			if tt.wantErr != "" {
				var filterErr *FacetFilterError
				require.ErrorAs(t, err, &filterErr)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr)
		})
	}
}
