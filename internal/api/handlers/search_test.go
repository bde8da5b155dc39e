package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/querygate/internal/api/middleware"
	"github.com/sumandas0/querygate/internal/cache"
	"github.com/sumandas0/querygate/internal/core"
	"github.com/sumandas0/querygate/internal/lock"
	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/internal/store/testutils"
	"github.com/sumandas0/querygate/pkg/utils"
)

func newTestServer(t *testing.T) (http.Handler, *core.Engine, *testutils.StubEngine) {
	t.Helper()

	registry := testutils.NewMemoryRegistry()
	stub := testutils.NewStubEngine()
	engine := core.NewEngine(registry, stub, cache.NewManager(registry, time.Minute), lock.NewIndexLockManager())
	validator := core.NewValidator()

	searchHandler := NewSearchHandler(engine)
	indexHandler := NewIndexHandler(engine, validator)
	settingsHandler := NewSettingsHandler(engine)

	router := chi.NewRouter()
	router.Route("/api/v1/indexes", func(r chi.Router) {
		r.Post("/", indexHandler.CreateIndex)
		r.Get("/", indexHandler.ListIndexes)
		r.Route("/{indexUID}", func(r chi.Router) {
			r.Get("/", indexHandler.GetIndex)
			r.Delete("/", indexHandler.DeleteIndex)
			r.Get("/search", searchHandler.Search)
			r.Post("/search", searchHandler.SearchPost)
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.GetSettings)
				r.Get("/displayed-attributes", settingsHandler.GetDisplayedAttributes)
				r.Put("/displayed-attributes", settingsHandler.UpdateDisplayedAttributes)
				r.Get("/attributes-for-faceting", settingsHandler.GetFacetedAttributes)
				r.Put("/attributes-for-faceting", settingsHandler.UpdateFacetedAttributes)
			})
		})
	})

	return router, engine, stub
}

func seedMovies(t *testing.T, engine *core.Engine) {
	t.Helper()

	_, err := engine.CreateIndex(context.Background(), "movies", []models.FieldDefinition{
		{Name: "title", Displayed: true},
		{Name: "overview", Displayed: true},
		{Name: "genre", Displayed: true, Faceted: true},
	})
	require.NoError(t, err)
}

func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()

	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp.Error.Code
}

func TestSearchHandler_Search(t *testing.T) {
	router, engine, stub := newTestServer(t)
	seedMovies(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies/search?q=moana", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "moana", result.Query)
	assert.Equal(t, []string{"movies"}, stub.ExecutedUIDs)
}

func TestSearchHandler_Search_UnknownParameter(t *testing.T) {
	router, engine, stub := newTestServer(t)
	seedMovies(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies/search?q=moana&fuzziness=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, utils.CodeValidation, decodeErrorCode(t, rec.Body))
	assert.Empty(t, stub.ExecutedSpecs, "rejected requests never reach the engine")
}

func TestSearchHandler_Search_MissingQuery(t *testing.T) {
	router, engine, _ := newTestServer(t)
	seedMovies(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, utils.CodeValidation, decodeErrorCode(t, rec.Body))
}

func TestSearchHandler_Search_EmptyQuery(t *testing.T) {
	router, engine, stub := newTestServer(t)
	seedMovies(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies/search?q=", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.LastSpec())
	assert.Equal(t, "", stub.LastSpec().Query, "an empty q is present and therefore valid")
}

func TestSearchHandler_Search_IndexNotFound(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/nowhere/search?q=moana", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, utils.CodeNotFound, decodeErrorCode(t, rec.Body))
}

func TestSearchHandler_Search_CropAndHighlight(t *testing.T) {
	router, engine, stub := newTestServer(t)
	seedMovies(t, engine)

	target := "/api/v1/indexes/movies/search?q=moana&attributesToCrop=overview:50&attributesToHighlight=title"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	spec := stub.LastSpec()
	require.NotNil(t, spec)
	assert.Equal(t, map[string]int{"overview": 50}, spec.AttributesToCrop)
	assert.Contains(t, spec.AttributesToHighlight, "title")
}

func TestSearchHandler_Search_FacetDistributionNotConfigured(t *testing.T) {
	router, engine, _ := newTestServer(t)

	_, err := engine.CreateIndex(context.Background(), "plain", []models.FieldDefinition{
		{Name: "title", Displayed: true},
	})
	require.NoError(t, err)

	target := "/api/v1/indexes/plain/search?q=moana&facetsDistribution=" + `%5B%22*%22%5D`
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, utils.CodeValidation, decodeErrorCode(t, rec.Body))
}

func TestSearchHandler_SearchPost(t *testing.T) {
	router, engine, stub := newTestServer(t)
	seedMovies(t, engine)

	body := bytes.NewBufferString(`{"q":"moana","attributesToRetrieve":"title"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/indexes/movies/search", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"title"}, stub.LastSpec().RetrievableAttributes)
}

func TestSearchHandler_SearchPost_UnknownField(t *testing.T) {
	router, engine, _ := newTestServer(t)
	seedMovies(t, engine)

	body := bytes.NewBufferString(`{"q":"moana","fuzziness":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/indexes/movies/search", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, utils.CodeValidation, decodeErrorCode(t, rec.Body))
}

func TestSearchHandler_SearchPost_LimitBounds(t *testing.T) {
	router, engine, _ := newTestServer(t)
	seedMovies(t, engine)

	body := bytes.NewBufferString(`{"q":"moana","limit":5000}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/indexes/movies/search", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
