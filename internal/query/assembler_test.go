package query

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sumandas0/querygate/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestBuildSpec_PassThroughParameters(t *testing.T) {
	a := testAssembler()
	raw := &models.RawSearchQuery{
		Query:   "dune",
		Offset:  intPtr(10),
		Limit:   intPtr(5),
		Filters: strPtr("year > 1990"),
		Matches: boolPtr(true),
	}

	spec, err := a.BuildSpec(raw)

	require.NoError(t, err)
	assert.Equal(t, "dune", spec.Query)
	assert.Equal(t, 10, *spec.Offset)
	assert.Equal(t, 5, *spec.Limit)
	require.NotNil(t, spec.Filters)
	assert.Equal(t, "year > 1990", *spec.Filters)
	assert.True(t, spec.Matches)
}

func TestBuildSpec_MatchesFalseIsNotAttached(t *testing.T) {
	a := testAssembler()

	spec, err := a.BuildSpec(&models.RawSearchQuery{Query: "dune", Matches: boolPtr(false)})

	require.NoError(t, err)
	assert.False(t, spec.Matches)
}

func TestBuildSpec_FullRequest(t *testing.T) {
	a := testAssembler()
	raw := &models.RawSearchQuery{
		Query:                 "dune",
		AttributesToRetrieve:  strPtr("title,genre"),
		AttributesToCrop:      strPtr("title:50"),
		AttributesToHighlight: strPtr("*"),
		FacetFilters:          strPtr(`["genre:scifi"]`),
		FacetsDistribution:    strPtr(`["genre"]`),
	}

	spec, err := a.BuildSpec(raw)

	require.NoError(t, err)
	assert.Equal(t, []string{"title", "genre"}, spec.RetrievableAttributes)
	assert.Equal(t, map[string]int{"title": 50}, spec.AttributesToCrop)
	// The wildcard expands over the restricted set, not the displayed set.
	assert.Equal(t, map[string]struct{}{"title": {}, "genre": {}}, spec.AttributesToHighlight)
	require.NotNil(t, spec.FacetFilter)
	assert.Equal(t, []models.FacetEntry{{ID: 2, Name: "genre"}}, spec.FacetDistribution)
}

func TestBuildSpec_FacetFiltersIgnoredWhenFacetingUnconfigured(t *testing.T) {
	def := &models.IndexDefinition{
		UID: "plain",
		Fields: []models.FieldDefinition{
			{ID: 0, Name: "title", Displayed: true},
		},
	}
	a := NewAssembler(models.NewSchema(def), zerolog.Nop())

	spec, err := a.BuildSpec(&models.RawSearchQuery{
		Query:        "dune",
		FacetFilters: strPtr(`["genre:scifi"]`),
	})

	require.NoError(t, err)
	assert.Nil(t, spec.FacetFilter)
}

func TestBuildSpec_FacetDistributionWithoutFacetConfigFails(t *testing.T) {
	def := &models.IndexDefinition{
		UID: "plain",
		Fields: []models.FieldDefinition{
			{ID: 0, Name: "title", Displayed: true},
		},
	}
	a := NewAssembler(models.NewSchema(def), zerolog.Nop())

	_, err := a.BuildSpec(&models.RawSearchQuery{
		Query:              "dune",
		FacetsDistribution: strPtr(`["genre"]`),
	})

	var facetErr *FacetCountError
	require.ErrorAs(t, err, &facetErr)
	assert.Equal(t, FacetCountNoFacetSet, facetErr.Kind)
}

func TestBuildSpec_TerminalErrorReturnsNoPartialSpec(t *testing.T) {
	a := testAssembler()

	spec, err := a.BuildSpec(&models.RawSearchQuery{
		Query:              "dune",
		FacetsDistribution: strPtr(`not json`),
		AttributesToCrop:   strPtr("title:50"),
	})

	require.Error(t, err)
	assert.Nil(t, spec)
}

func TestBuildSpec_Idempotent(t *testing.T) {
	raw := &models.RawSearchQuery{
		Query:                 "dune",
		AttributesToRetrieve:  strPtr("genre,title,year"),
		AttributesToCrop:      strPtr("*,title:50"),
		AttributesToHighlight: strPtr("title,genre"),
		FacetFilters:          strPtr(`[["genre:scifi","genre:drama"]]`),
		FacetsDistribution:    strPtr(`["year","genre","year"]`),
	}

	first, err := testAssembler().BuildSpec(raw)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		next, err := testAssembler().BuildSpec(raw)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}

	// Ordered sequences keep input order and duplicates.
	assert.Equal(t, []string{"genre", "title", "year"}, first.RetrievableAttributes)
	assert.Equal(t, []models.FacetEntry{
		{ID: 3, Name: "year"},
		{ID: 2, Name: "genre"},
		{ID: 3, Name: "year"},
	}, first.FacetDistribution)
}
