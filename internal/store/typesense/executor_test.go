package typesense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/querygate/internal/models"
)

func TestBuildSearchParams_Pagination(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		limit    int
		wantPage int
	}{
		{"first page", 0, 20, 1},
		{"page boundary", 40, 20, 3},
		{"offset inside a page quantizes down", 5, 20, 1},
		{"offset in the second page", 25, 20, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := buildSearchParams(&models.SearchSpecification{Query: "dune"}, tt.offset, tt.limit)

			assert.Equal(t, "dune", params.Q)
			assert.Equal(t, "*", params.QueryBy)
			require.NotNil(t, params.Page)
			assert.Equal(t, tt.wantPage, *params.Page)
			require.NotNil(t, params.PerPage)
			assert.Equal(t, tt.limit, *params.PerPage)
		})
	}
}

func TestBuildSearchParams_FieldSelection(t *testing.T) {
	spec := &models.SearchSpecification{
		Query:                 "dune",
		RetrievableAttributes: []string{"title", "genre"},
		AttributesToHighlight: map[string]struct{}{"title": {}},
		AttributesToCrop:      map[string]int{"overview": 120, "title": 50},
	}

	params := buildSearchParams(spec, 0, 20)

	require.NotNil(t, params.IncludeFields)
	assert.Equal(t, "title,genre", *params.IncludeFields)
	require.NotNil(t, params.HighlightFields)
	assert.Equal(t, "overview,title", *params.HighlightFields,
		"cropped attributes join the highlighted set, sorted")
	require.NotNil(t, params.SnippetThreshold)
	assert.Equal(t, 50, *params.SnippetThreshold, "smallest crop length wins")
}

func TestBuildSearchParams_FiltersAndFacets(t *testing.T) {
	filters := "year > 1990"
	spec := &models.SearchSpecification{
		Query:   "dune",
		Filters: &filters,
		FacetFilter: &models.FacetFilterExpr{Clauses: []models.FacetFilterClause{
			{{Name: "genre", Value: "sci-fi"}, {Name: "genre", Value: "drama"}},
			{{Name: "lang", Value: "en"}},
		}},
		FacetDistribution: []models.FacetEntry{{ID: 2, Name: "genre"}, {ID: 3, Name: "lang"}},
	}

	params := buildSearchParams(spec, 0, 20)

	require.NotNil(t, params.FilterBy)
	assert.Equal(t, "year > 1990 && (genre:=sci-fi || genre:=drama) && lang:=en", *params.FilterBy)
	require.NotNil(t, params.FacetBy)
	assert.Equal(t, "genre,lang", *params.FacetBy, "facet order follows the requested distribution")
}

func TestBuildSearchParams_Minimal(t *testing.T) {
	params := buildSearchParams(&models.SearchSpecification{}, 0, 20)

	assert.Nil(t, params.IncludeFields)
	assert.Nil(t, params.HighlightFields)
	assert.Nil(t, params.SnippetThreshold)
	assert.Nil(t, params.FilterBy)
	assert.Nil(t, params.FacetBy)
}
