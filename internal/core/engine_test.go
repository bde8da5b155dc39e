package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/querygate/internal/cache"
	"github.com/sumandas0/querygate/internal/lock"
	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/internal/security"
	"github.com/sumandas0/querygate/internal/store/testutils"
	"github.com/sumandas0/querygate/pkg/utils"
)

func newTestEngine(t *testing.T) (*Engine, *testutils.MemoryRegistry, *testutils.StubEngine) {
	t.Helper()

	registry := testutils.NewMemoryRegistry()
	stub := testutils.NewStubEngine()
	cacheManager := cache.NewManager(registry, time.Minute)
	lockManager := lock.NewIndexLockManager()

	return NewEngine(registry, stub, cacheManager, lockManager), registry, stub
}

func movieFields() []models.FieldDefinition {
	return []models.FieldDefinition{
		{ID: 0, Name: "title", Displayed: true},
		{ID: 1, Name: "overview", Displayed: true},
		{ID: 2, Name: "genre", Displayed: true, Faceted: true},
		{ID: 3, Name: "internal_score"},
	}
}

func seedIndex(t *testing.T, registry *testutils.MemoryRegistry, uid string, fields []models.FieldDefinition) *models.IndexDefinition {
	t.Helper()

	def := models.NewIndexDefinition(uid, fields)
	require.NoError(t, registry.CreateIndex(context.Background(), def))
	return def
}

func strPtr(s string) *string { return &s }

func TestEngine_Search_Defaults(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	seedIndex(t, registry, "movies", movieFields())

	result, err := engine.Search(context.Background(), "movies", &models.RawSearchQuery{Query: "moana"})

	require.NoError(t, err)
	assert.Equal(t, "moana", result.Query)

	spec := stub.LastSpec()
	require.NotNil(t, spec)
	assert.Equal(t, "moana", spec.Query)
	assert.Nil(t, spec.RetrievableAttributes, "absent attributesToRetrieve keeps the full displayed set")
	assert.Nil(t, spec.FacetFilter)
	assert.Nil(t, spec.FacetDistribution)
	assert.False(t, spec.Matches)
}

func TestEngine_Search_RestrictedAttributes(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	seedIndex(t, registry, "movies", movieFields())

	raw := &models.RawSearchQuery{
		Query:                 "moana",
		AttributesToRetrieve:  strPtr("overview,title"),
		AttributesToHighlight: strPtr("*"),
	}

	_, err := engine.Search(context.Background(), "movies", raw)

	require.NoError(t, err)
	spec := stub.LastSpec()
	assert.Equal(t, []string{"overview", "title"}, spec.RetrievableAttributes)
	assert.Contains(t, spec.AttributesToHighlight, "overview")
	assert.Contains(t, spec.AttributesToHighlight, "title")
	assert.NotContains(t, spec.AttributesToHighlight, "genre",
		"highlight wildcard expands over the restricted set only")
}

func TestEngine_Search_IndexNotFound(t *testing.T) {
	engine, _, stub := newTestEngine(t)

	_, err := engine.Search(context.Background(), "missing", &models.RawSearchQuery{Query: "moana"})

	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
	assert.Empty(t, stub.ExecutedSpecs)
}

func TestEngine_Search_FacetDistributionWithoutFacets(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	seedIndex(t, registry, "plain", []models.FieldDefinition{
		{ID: 0, Name: "title", Displayed: true},
	})

	raw := &models.RawSearchQuery{
		Query:              "moana",
		FacetsDistribution: strPtr(`["*"]`),
	}

	_, err := engine.Search(context.Background(), "plain", raw)

	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
	assert.Contains(t, err.Error(), "no attributes are set as facets")
	assert.Empty(t, stub.ExecutedSpecs)
}

func TestEngine_Search_NonFacetableDistributionAttribute(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	seedIndex(t, registry, "movies", movieFields())

	raw := &models.RawSearchQuery{
		Query:              "moana",
		FacetsDistribution: strPtr(`["title"]`),
	}

	_, err := engine.Search(context.Background(), "movies", raw)

	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
	assert.Contains(t, err.Error(), "attribute title is not set as facet")
	assert.Empty(t, stub.ExecutedSpecs)
}

func TestEngine_Search_SanitizerLeavesRequestUntouched(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	seedIndex(t, registry, "movies", movieFields())
	engine.SetSanitizer(security.NewSearchSanitizer(security.SanitizerConfig{Enabled: true}))

	raw := &models.RawSearchQuery{Query: "<b>moana</b>"}

	result, err := engine.Search(context.Background(), "movies", raw)

	require.NoError(t, err)
	assert.Equal(t, "<b>moana</b>", raw.Query, "the incoming request is not mutated")
	assert.Equal(t, "moana", stub.LastSpec().Query)
	assert.Equal(t, "moana", result.Query)
}

func TestEngine_Search_FacetFiltersNoopWithoutFacets(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	seedIndex(t, registry, "plain", []models.FieldDefinition{
		{ID: 0, Name: "title", Displayed: true},
	})

	raw := &models.RawSearchQuery{
		Query:        "moana",
		FacetFilters: strPtr(`["genre:horror"]`),
	}

	_, err := engine.Search(context.Background(), "plain", raw)

	require.NoError(t, err)
	assert.Nil(t, stub.LastSpec().FacetFilter)
}

func TestEngine_Search_EngineFailureMapsToUpstream(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	seedIndex(t, registry, "movies", movieFields())
	stub.Err = errors.New("connection refused")

	_, err := engine.Search(context.Background(), "movies", &models.RawSearchQuery{Query: "moana"})

	require.Error(t, err)
	assert.True(t, utils.IsUpstream(err))
}

func TestEngine_CreateIndex(t *testing.T) {
	engine, registry, stub := newTestEngine(t)

	def, err := engine.CreateIndex(context.Background(), "movies", []models.FieldDefinition{
		{Name: "title", Displayed: true},
		{Name: "genre", Displayed: true, Faceted: true},
	})

	require.NoError(t, err)
	assert.Equal(t, "movies", def.UID)
	assert.Equal(t, models.FieldID(0), def.Fields[0].ID)
	assert.Equal(t, models.FieldID(1), def.Fields[1].ID)

	stored, err := registry.GetIndex(context.Background(), "movies")
	require.NoError(t, err)
	assert.Equal(t, def.UID, stored.UID)
	assert.True(t, stub.Collections["movies"])
}

func TestEngine_CreateIndex_Duplicate(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateIndex(context.Background(), "movies", movieFields())
	require.NoError(t, err)

	_, err = engine.CreateIndex(context.Background(), "movies", movieFields())
	require.Error(t, err)
	assert.True(t, utils.IsAlreadyExists(err))
}

func TestEngine_CreateIndex_DuplicateFieldName(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateIndex(context.Background(), "movies", []models.FieldDefinition{
		{Name: "title"},
		{Name: "title"},
	})

	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestEngine_CreateIndex_RollbackOnCollectionFailure(t *testing.T) {
	engine, registry, stub := newTestEngine(t)
	stub.CollectionErr = errors.New("typesense unavailable")

	_, err := engine.CreateIndex(context.Background(), "movies", movieFields())

	require.Error(t, err)
	assert.True(t, utils.IsUpstream(err))

	_, err = registry.GetIndex(context.Background(), "movies")
	assert.True(t, utils.IsNotFound(err), "registry entry is rolled back")
}

func TestEngine_DeleteIndex(t *testing.T) {
	engine, registry, stub := newTestEngine(t)

	_, err := engine.CreateIndex(context.Background(), "movies", movieFields())
	require.NoError(t, err)

	require.NoError(t, engine.DeleteIndex(context.Background(), "movies"))

	_, err = registry.GetIndex(context.Background(), "movies")
	assert.True(t, utils.IsNotFound(err))
	assert.False(t, stub.Collections["movies"])

	_, err = engine.GetIndex(context.Background(), "movies")
	assert.True(t, utils.IsNotFound(err), "cache entry is invalidated")
}

func TestEngine_UpdateDisplayedAttributes(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateIndex(context.Background(), "movies", movieFields())
	require.NoError(t, err)

	def, err := engine.UpdateDisplayedAttributes(context.Background(), "movies", []string{"title"})

	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, def.DisplayedAttributes())

	fresh, err := engine.GetIndex(context.Background(), "movies")
	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, fresh.DisplayedAttributes(), "stale cache entry is not served")
}

func TestEngine_UpdateDisplayedAttributes_UnknownName(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateIndex(context.Background(), "movies", movieFields())
	require.NoError(t, err)

	_, err = engine.UpdateDisplayedAttributes(context.Background(), "movies", []string{"title", "director"})

	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
	assert.Contains(t, err.Error(), "director")
}

func TestEngine_UpdateFacetedAttributes_EnablesDistribution(t *testing.T) {
	engine, _, stub := newTestEngine(t)

	_, err := engine.CreateIndex(context.Background(), "movies", []models.FieldDefinition{
		{Name: "title", Displayed: true},
		{Name: "genre", Displayed: true},
	})
	require.NoError(t, err)

	raw := &models.RawSearchQuery{Query: "moana", FacetsDistribution: strPtr(`["*"]`)}

	_, err = engine.Search(context.Background(), "movies", raw)
	require.Error(t, err, "no facets configured yet")

	_, err = engine.UpdateFacetedAttributes(context.Background(), "movies", []string{"genre"})
	require.NoError(t, err)

	_, err = engine.Search(context.Background(), "movies", raw)
	require.NoError(t, err)
	require.Len(t, stub.LastSpec().FacetDistribution, 1)
	assert.Equal(t, "genre", stub.LastSpec().FacetDistribution[0].Name)
}
